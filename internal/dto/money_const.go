package dto

// 账户角色，同一用户不同角色各自一本账
const (
	RoleSeller    = "seller"
	RoleAffiliate = "affiliate"
	RoleRecruiter = "recruiter"
	RolePlatform  = "platform"
)

// ValidRole 只接受上面四种
func ValidRole(role string) bool {
	switch role {
	case RoleSeller, RoleAffiliate, RoleRecruiter, RolePlatform:
		return true
	}
	return false
}

// 资金流水类型
const (
	LedgerTypeCredit  = 1  // 分账入账（加可用）
	LedgerTypeDebit   = 2  // 退款冲正（减可用）
	LedgerTypeReserve = 60 // 提现冻结（可用 → 处理中）
	LedgerTypeRelease = 61 // 提现失败解冻（处理中 → 可用）
	LedgerTypeSettle  = 62 // 提现成功（处理中 → 累计已打款）
)

// 分账记录状态
const (
	DistributionPending  = "pending"
	DistributionSettled  = "settled"
	DistributionReversed = "reversed"
)

// 提现申请状态
const (
	PayoutRequested  = "requested"
	PayoutBatched    = "batched"
	PayoutProcessing = "processing"
	PayoutCompleted  = "completed"
	PayoutFailed     = "failed"
)

// 打款批次状态
const (
	BatchOpen             = "open"
	BatchSubmitted        = "submitted"
	BatchPartiallySettled = "partially_settled"
	BatchSettled          = "settled"
)

// FailureReasonTimeout 超时失败的固定原因，下个打款窗口自动重试
const FailureReasonTimeout = "timeout"

// FailureReasonTimeoutUnfunded 超时待重试时余额已被提走，不再自动重试，等运营核对渠道结果
const FailureReasonTimeoutUnfunded = "timeout_unfunded"

// OutcomeUnknown 渠道结果未知的失败，重试必须沿用原幂等键
func OutcomeUnknown(reason string) bool {
	return reason == FailureReasonTimeout || reason == FailureReasonTimeoutUnfunded
}
