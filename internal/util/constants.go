package util

const (
	DateFormat = "2006-01-02"
)

// 报告归档相关常量
const (
	MimeJSON         = "application/json"
	ReportArchiveDir = "reports"
)
