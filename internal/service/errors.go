package service

import (
	"errors"
)

var (
	ErrInvalidAmount       = errors.New("结清金额必须大于0")
	ErrAmountExceedsCredit = errors.New("结清金额超过可用欠款")
	ErrNoCreditFound       = errors.New("该玩家没有欠款")

	ErrAmountZero         = errors.New("金额不能为0")
	ErrInvalidPaymentType = errors.New("支付方式不合法")
	ErrInvalidComment     = errors.New("备注长度必须在1-500个字符之间")
	ErrInvalidPlayerName  = errors.New("玩家名称不能超过128个字符")

	ErrSessionNotOpen       = errors.New("场次未开启")
	ErrSessionAlreadyOpen   = errors.New("该赌台已有进行中的场次")
	ErrSessionAlreadyClosed = errors.New("场次已关闭")

	ErrSystemBusy = errors.New("系统繁忙，请稍后重试")
)
