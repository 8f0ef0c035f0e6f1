package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTxLogRollbackReversesInOrder(t *testing.T) {
	var tx txLog

	var order []int
	tx.Record(func() { order = append(order, 1) })
	tx.Record(func() { order = append(order, 2) })
	tx.Record(func() { order = append(order, 3) })

	tx.Rollback()

	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestTxLogCommitDiscardsInverses(t *testing.T) {
	var tx txLog

	called := false
	tx.Record(func() { called = true })

	tx.Commit()
	tx.Rollback()

	assert.False(t, called)
}

func TestTxLogRollbackRestoresState(t *testing.T) {
	m := map[string]int{"a": 1}

	var tx txLog

	m["b"] = 2
	tx.Record(func() { delete(m, "b") })

	m["a"] = 9
	tx.Record(func() { m["a"] = 1 })

	tx.Rollback()

	assert.Equal(t, map[string]int{"a": 1}, m)
}

func TestTxLogEmptyRollback(t *testing.T) {
	var tx txLog

	assert.NotPanics(t, func() { tx.Rollback() })
}
