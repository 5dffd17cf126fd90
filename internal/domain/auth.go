package domain

// SubjectType differentiates machine agents from human operator sessions.
type SubjectType string

const (
	SubjectTypeAgent    SubjectType = "AGENT"
	SubjectTypeOperator SubjectType = "OPERATOR"
)
