package utils

import (
	"errors"

	"mkt-settle-api/internal/constant"
)

// 统一响应格式（支持中英文提示）
type Response struct {
	Code    int         `json:"code"`
	Msg     string      `json:"msg"`              // 中文描述
	MsgEN   string      `json:"msg_en,omitempty"` // 英文描述
	Detail  string      `json:"detail,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

// 成功响应
func Success(data interface{}) Response {
	return Response{
		Code:  constant.CodeSuccess,
		Msg:   "成功",
		MsgEN: "Success",
		Data:  data,
	}
}

// 错误响应（自动从 constant 中获取中英文描述）
func Error(code int) Response {
	if info, exists := constant.GetErrorInfo(code); exists {
		return Response{
			Code:  code,
			Msg:   info.CN,
			MsgEN: info.EN,
		}
	}
	return Response{
		Code:  code,
		Msg:   "未知错误",
		MsgEN: "Unknown error",
	}
}

// ErrorFrom 把 service 返回的 error 转成响应，非业务错误不暴露内部细节
func ErrorFrom(err error) Response {
	var ce *constant.CustomError
	if !errors.As(err, &ce) {
		return Error(constant.CodeSystemError)
	}
	resp := Error(ce.Code())
	// 1000-1099 为系统错误，detail 里可能带 SQL 或连接信息
	if ce.Code() < 1000 || ce.Code() >= 1100 {
		resp.Detail = ce.Detail()
	}
	resp.Data = ce.Data()
	return resp
}

// 错误响应（带 TraceID）
func ErrorWithTrace(code int, traceID string) Response {
	resp := Error(code)
	resp.TraceID = traceID
	return resp
}
