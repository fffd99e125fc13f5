package db

import (
	"context"

	"gorm.io/gorm"
)

// WithTx runs fn in one transaction. An error or panic from fn rolls back every
// write, so multi-step fulfillment operations never persist half-way.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
