package postgres

import (
	"context"
	"fmt"
	"time"

	"trivia-match/internal/domain"

	"github.com/uptrace/bun"
)

type bankRow struct {
	bun.BaseModel `bun:"table:question_banks"`

	ID        string      `bun:"id,pk"`
	Data      domain.Bank `bun:"data,type:jsonb"`
	UpdatedAt time.Time   `bun:"updated_at,notnull"`
}

// SaveBank inserts or replaces a question bank.
func SaveBank(ctx context.Context, db bun.IDB, bank domain.Bank) error {
	if err := bank.Validate(); err != nil {
		return err
	}
	row := &bankRow{ID: bank.ID, Data: bank, UpdatedAt: time.Now().UTC()}
	_, err := db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save bank %s: %w", bank.ID, err)
	}
	return nil
}
