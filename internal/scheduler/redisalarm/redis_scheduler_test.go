package redisalarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderMember_RoundTripsInt64(t *testing.T) {
	assert.Equal(t, "42", orderMember(42))
	assert.Equal(t, "-1", orderMember(-1))
}
