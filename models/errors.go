package models

import "errors"

// 核心操作的錯誤分類，handler 依此對應 HTTP 狀態碼。
// 儲存層故障用 ErrStorage 包裝，不對外洩漏內部細節。
var (
	ErrConflict     = errors.New("participant name already taken")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("requester is not the author")
	ErrInvalidLimit = errors.New("limit must be a positive integer")
	ErrStorage      = errors.New("storage failure")
)
