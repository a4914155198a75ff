package constant

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	CN string `json:"cn"` // 中文错误信息
	EN string `json:"en"` // 英文错误信息
}

// ErrorMessages 错误信息映射
var ErrorMessages = map[int]ErrorInfo{
	// 系统错误
	CodeSuccess:            {"操作成功", "Success"},
	CodeSystemError:        {"系统错误", "System error"},
	CodeDatabaseError:      {"数据库错误", "Database error"},
	CodeRedisError:         {"缓存服务错误", "Redis error"},
	CodeInternalError:      {"内部服务错误", "Internal error"},
	CodeServiceUnavailable: {"服务暂时不可用", "Service unavailable"},
	CodeTimeout:            {"请求超时", "Request timeout"},
	CodeRateLimit:          {"请求过于频繁", "Too many requests"},

	// 参数错误
	CodeInvalidParams:     {"参数校验失败", "Validation error"},
	CodeMissingParams:     {"缺少必要参数", "Missing parameters"},
	CodeParamsFormatError: {"参数格式错误", "Parameter format error"},
	CodeParamsRangeError:  {"参数超出范围", "Parameter out of range"},
	CodeDuplicateRequest:  {"重复请求", "Duplicate request"},

	// 认证
	CodeUnauthorized:     {"未授权访问", "Unauthorized"},
	CodeTokenInvalid:     {"Token无效", "Invalid token"},
	CodeAccessDenied:     {"访问权限不足", "Access denied"},
	CodeIPNotWhitelisted: {"IP不在白名单内", "IP not whitelisted"},

	// 账务
	CodeBalanceInsufficient: {"可用余额不足", "Insufficient balance"},
	CodeLedgerNotFound:      {"账本不存在", "Ledger not found"},
	CodeRecordNotFound:      {"记录不存在", "Record not found"},

	// 销售分润
	CodeSaleReversed:   {"销售已冲正", "Sale already reversed"},
	CodeBreakdownDrift: {"价格拆分复算不一致", "Price breakdown drift"},

	// 代付
	CodePayoutBelowMinimum:  {"未达到最低提现金额", "Below minimum payout threshold"},
	CodePayoutStatusInvalid: {"代付状态无效", "Payout status invalid"},
	CodeBatchNotFound:       {"批次不存在", "Batch not found"},
	CodeBatchBusy:           {"批次提交中", "Batch is being submitted"},

	// 转账
	CodeTransferFailed:  {"转账失败", "Transfer failed"},
	CodeTransferTimeout: {"转账超时", "Transfer timeout"},

	// 对账
	CodeReconDataMismatch: {"对账数据不一致", "Reconciliation mismatch"},

	// 配置
	CodeConfigNotFound: {"配置信息不存在", "Config not found"},
	CodeConfigInvalid:  {"费率配置无效", "Invalid fee configuration"},
}
