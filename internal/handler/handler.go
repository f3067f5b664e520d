package handler

import (
	"errors"
	"log"
	"strconv"
	"time"

	"casinoledger/internal/config"
	"casinoledger/internal/repository"
	"casinoledger/internal/service"
	"casinoledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// parseSessionDate 营业日按 loc 的零点解析
//
// loc 必须与 MySQL DSN 的 loc 一致（当前为 Local），否则驱动换算时区后 date 列会落到前一天
func parseSessionDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, loc)
}

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	sessionService    *service.SessionService
	purchaseService   *service.PurchaseService
	settlementService *service.SettlementService
	adjustmentService *service.AdjustmentService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	credit := service.NewCreditService(cfg.Credit)
	return &Handler{
		sessionService:    service.NewSessionService(db, rdb, cfg, credit),
		purchaseService:   service.NewPurchaseService(db),
		settlementService: service.NewSettlementService(db, rdb, cfg, credit),
		adjustmentService: service.NewAdjustmentService(db),
	}
}

// handleError 把服务层错误转换成响应码
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrSeatNotFound),
		errors.Is(err, repository.ErrTableNotFound),
		errors.Is(err, repository.ErrAdjustmentNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrNoCreditFound):
		response.BusinessError(c, response.CodeNoCreditFound, err.Error())
	case errors.Is(err, service.ErrAmountExceedsCredit):
		response.BusinessError(c, response.CodeAmountExceedsCredit, err.Error())
	case errors.Is(err, service.ErrSessionNotOpen):
		response.BusinessError(c, response.CodeSessionNotOpen, err.Error())
	case errors.Is(err, service.ErrSessionAlreadyClosed):
		response.BusinessError(c, response.CodeSessionClosed, err.Error())
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrAmountZero):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, service.ErrInvalidPaymentType):
		response.BusinessError(c, response.CodeInvalidPaymentType, err.Error())
	case errors.Is(err, service.ErrSystemBusy):
		response.BusinessError(c, response.CodeSystemBusy, service.ErrSystemBusy.Error())
	case errors.Is(err, service.ErrSessionAlreadyOpen):
		response.Error(c, response.CodeConflict, err.Error())
	case errors.Is(err, service.ErrInvalidComment), errors.Is(err, service.ErrInvalidPlayerName):
		response.ParamError(c, err.Error())
	default:
		log.Printf("[Handler] %s %s 处理失败: %v", c.Request.Method, c.Request.URL.Path, err)
		response.ServerError(c, "服务器内部错误")
	}
}

// ============================================================
// 场次相关接口
// ============================================================

// OpenSessionRequest 开场请求，date 格式 2006-01-02，可省略
type OpenSessionRequest struct {
	TableID int64  `json:"table_id" binding:"required"`
	Date    string `json:"date"`
}

// OpenSession 开场
// POST /api/v1/session/open
func (h *Handler) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	var date *time.Time
	if req.Date != "" {
		d, err := parseSessionDate(req.Date, time.Local)
		if err != nil {
			response.ParamError(c, "date 格式应为 YYYY-MM-DD")
			return
		}
		date = &d
	}

	session, err := h.sessionService.OpenSession(c.Request.Context(), &service.OpenSessionRequest{
		TableID: req.TableID,
		Date:    date,
		ActorID: ActorID(c),
	})
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, session)
}

// GetSession 场次详情
// GET /api/v1/session/detail?session_id=xxx
func (h *Handler) GetSession(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.ParamError(c, "session_id 参数不能为空")
		return
	}

	detail, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, detail)
}

// ListSeats 场次座位列表
// GET /api/v1/session/seats?session_id=xxx
func (h *Handler) ListSeats(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.ParamError(c, "session_id 参数不能为空")
		return
	}

	seats, err := h.sessionService.ListSeats(c.Request.Context(), sessionID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, seats)
}

// CloseSession 关场，结清所有座位的欠款
// POST /api/v1/session/close
func (h *Handler) CloseSession(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	report, err := h.sessionService.CloseSession(c.Request.Context(), req.SessionID, ActorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, report)
}

type SetPlayerNameRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	SeatNo     int    `json:"seat_no" binding:"required,gt=0"`
	PlayerName string `json:"player_name"`
}

// SetPlayerName 登记座位玩家
// POST /api/v1/session/seat/name
func (h *Handler) SetPlayerName(c *gin.Context) {
	var req SetPlayerNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.sessionService.SetPlayerName(c.Request.Context(), req.SessionID, req.SeatNo, req.PlayerName); err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "登记成功",
	})
}

// ============================================================
// 买码与欠款相关接口
// ============================================================

// CreatePurchaseRequest 买码请求，amount 可以为负数（冲正）
type CreatePurchaseRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	SeatNo      int    `json:"seat_no" binding:"required,gt=0"`
	PaymentType string `json:"payment_type" binding:"required"`
	Amount      int64  `json:"amount"`
}

// CreatePurchase 记录买码
// POST /api/v1/purchase/create
func (h *Handler) CreatePurchase(c *gin.Context) {
	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	purchase, err := h.purchaseService.RecordPurchase(c.Request.Context(), &service.RecordPurchaseRequest{
		SessionID:   req.SessionID,
		SeatNo:      req.SeatNo,
		PaymentType: req.PaymentType,
		Amount:      req.Amount,
		ActorID:     ActorID(c),
	})
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, purchase)
}

// ListPurchases 座位买码记录（含现金）
// GET /api/v1/purchase/list?session_id=xxx&seat_no=1
func (h *Handler) ListPurchases(c *gin.Context) {
	sessionID, seatNo, ok := seatQuery(c)
	if !ok {
		return
	}

	purchases, err := h.purchaseService.ListSeatPurchases(c.Request.Context(), sessionID, seatNo)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, purchases)
}

// seatQuery 解析 session_id 与 seat_no，失败时已写入响应
func seatQuery(c *gin.Context) (string, int, bool) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.ParamError(c, "session_id 参数不能为空")
		return "", 0, false
	}
	seatNo, err := strconv.Atoi(c.Query("seat_no"))
	if err != nil || seatNo <= 0 {
		response.ParamError(c, "seat_no 参数错误")
		return "", 0, false
	}
	return sessionID, seatNo, true
}

// GetSeatCredit 查询座位欠款
// GET /api/v1/credit/seat?session_id=xxx&seat_no=1
func (h *Handler) GetSeatCredit(c *gin.Context) {
	sessionID, seatNo, ok := seatQuery(c)
	if !ok {
		return
	}

	credit, err := h.settlementService.SeatCredit(c.Request.Context(), sessionID, seatNo)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, credit)
}

// CloseCreditRequest 结清请求，amount 的校验交给服务层以返回业务错误码
type CloseCreditRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	SeatNo    int    `json:"seat_no" binding:"required,gt=0"`
	Amount    int64  `json:"amount"`
}

// CloseCredit 结清部分欠款
// POST /api/v1/credit/close
func (h *Handler) CloseCredit(c *gin.Context) {
	var req CloseCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.settlementService.ClosePartialCredit(c.Request.Context(), &service.ClosePartialCreditRequest{
		SessionID: req.SessionID,
		SeatNo:    req.SeatNo,
		Amount:    req.Amount,
		ActorID:   ActorID(c),
	})
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 余额调整相关接口
// ============================================================

type CreateAdjustmentRequest struct {
	Amount  int64  `json:"amount"`
	Comment string `json:"comment"`
}

// CreateAdjustment 人工余额调整
// POST /api/v1/adjustment/create
func (h *Handler) CreateAdjustment(c *gin.Context) {
	var req CreateAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	adj, err := h.adjustmentService.CreateManualAdjustment(c.Request.Context(), req.Amount, req.Comment, ActorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, adj)
}

// GetAdjustment 余额调整详情
// GET /api/v1/adjustment/detail?adjustment_no=xxx
func (h *Handler) GetAdjustment(c *gin.Context) {
	adjustmentNo := c.Query("adjustment_no")
	if adjustmentNo == "" {
		response.ParamError(c, "adjustment_no 参数不能为空")
		return
	}

	adj, err := h.adjustmentService.GetAdjustment(c.Request.Context(), adjustmentNo)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, adj)
}

// ListAdjustments 余额调整列表
// GET /api/v1/adjustment/list?page=1&page_size=10
func (h *Handler) ListAdjustments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	list, total, err := h.adjustmentService.ListAdjustments(c.Request.Context(), page, pageSize)
	if err != nil {
		handleError(c, err)
		return
	}

	balance, err := h.adjustmentService.Balance(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"balance":   balance,
		"page":      page,
		"page_size": pageSize,
	})
}
