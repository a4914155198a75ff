package constant

// 业务级错误码 (2xxx)

// 账务相关错误码
const (
	CodeBalanceInsufficient = 2001 // 可用余额不足（InsufficientBalance），冻结/扣减会导致余额为负
	CodeLedgerNotFound      = 2002 // 账本不存在
	CodeRecordNotFound      = 2003 // 记录不存在
)

// 销售分润相关错误码
const (
	CodeSaleReversed   = 2101 // 销售已冲正，无法再次处理
	CodeBreakdownDrift = 2103 // 价格拆分与费率版本复算结果不一致
)

// 代付相关错误码
const (
	CodePayoutBelowMinimum  = 2200 // 可用余额未达到最低提现门槛
	CodePayoutStatusInvalid = 2201 // 代付申请状态不允许当前操作
	CodeBatchNotFound       = 2202 // 批次不存在
	CodeBatchBusy           = 2203 // 批次正在提交中
)

// 转账相关错误码（TransferFailure）
const (
	CodeTransferFailed  = 2300 // 支付机构拒绝转账
	CodeTransferTimeout = 2302 // 转账请求超时，下个窗口自动重试
)

// 对账相关错误码
const (
	CodeReconDataMismatch = 2801 // 账本余额与流水重放结果不一致，请人工核对
)

// 配置相关错误码（ConfigurationError），仅在启动时出现
const (
	CodeConfigNotFound = 2900 // 配置信息不存在
	CodeConfigInvalid  = 2901 // 费率配置无效（百分比为负或通道费率 >= 100）
)
