package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordID(t *testing.T) {
	id := RecordID("acme co.", "Blue Widget", "https://example.com/p/1")

	t.Run("stable across calls", func(t *testing.T) {
		assert.Equal(t, id, RecordID("acme co.", "Blue Widget", "https://example.com/p/1"))
	})

	t.Run("changes with any component", func(t *testing.T) {
		assert.NotEqual(t, id, RecordID("other co.", "Blue Widget", "https://example.com/p/1"))
		assert.NotEqual(t, id, RecordID("acme co.", "Red Widget", "https://example.com/p/1"))
		assert.NotEqual(t, id, RecordID("acme co.", "Blue Widget", "https://example.com/p/2"))
	})

	t.Run("component boundaries are unambiguous", func(t *testing.T) {
		assert.NotEqual(t, RecordID("ab", "c", "d"), RecordID("a", "bc", "d"))
	})
}

func TestProductRecordValidate(t *testing.T) {
	moq := 100
	badMOQ := 0
	negative := -1.0

	tests := []struct {
		name    string
		record  ProductRecord
		wantErr int
	}{
		{
			name: "valid record",
			record: ProductRecord{
				ID:    "abc",
				Title: "Blue Widget",
				URL:   "https://example.com/p/1",
				Price: &Price{Amount: 3.5, Currency: "USD"},
				MOQ:   &moq,
			},
			wantErr: 0,
		},
		{
			name:    "missing everything",
			record:  ProductRecord{},
			wantErr: 3,
		},
		{
			name: "negative price",
			record: ProductRecord{
				ID: "abc", Title: "x", URL: "y",
				Price: &Price{Amount: negative},
			},
			wantErr: 1,
		},
		{
			name: "zero moq",
			record: ProductRecord{
				ID: "abc", Title: "x", URL: "y", MOQ: &badMOQ,
			},
			wantErr: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.record.Validate(), tt.wantErr)
		})
	}
}
