package parser

import (
	"fmt"

	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken = "unexpected token %s, expected %s"
	ErrExpectedExpr    = "expected expression, found %s"
	ErrExpectedTable   = "expected table reference, found %s"
	ErrExpectedName    = "expected identifier, found %s"
	ErrTrailingInput   = "unexpected %s after end of statement"
)
