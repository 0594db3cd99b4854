package migrations

import (
	"context"

	"github.com/getchainhub/chainhub/db/models"
	"github.com/uptrace/bun"
)

/* Since this init will reflect the latest model fields when run on fresh db
make sure that when you add/remove columns in subsequent migrations IfNotExists/IfExists is used
otherwise it's going to result in errors.
*/
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*models.Invoice)(nil)).Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateIndex().Model((*models.Invoice)(nil)).
			Index("invoices_state_idx").Column("state").Exec(ctx); err != nil {
			return err
		}
		return nil
	}, nil)
}
