package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDocumentKind(t *testing.T) {
	kind, ok := ParseDocumentKind("paystub")
	assert.True(t, ok)
	assert.Equal(t, KindPaystub, kind)

	kind, ok = ParseDocumentKind("bank_statement")
	assert.True(t, ok)
	assert.Equal(t, KindBankStatement, kind)

	for _, s := range []string{"", "invoice", "PAYSTUB", "statement"} {
		_, ok := ParseDocumentKind(s)
		assert.False(t, ok, "input %q", s)
	}
}
