package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
	"gorm.io/gorm"
)

// Migrate bootstraps the legacy schema the gateway reads and writes. The
// production database is owned by another system, so this only runs when
// DB_AUTO_MIGRATE is set (local stacks and tests).
func Migrate(db *gorm.DB, observationsTable string) error {
	if observationsTable == "" {
		observationsTable = repository.DefaultObservationsTable
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createOutboxTables(),
		createClientTables(),
		createTelegramTables(observationsTable),
	})
	return m.Migrate()
}

func outboxTables() []string {
	seen := make(map[string]struct{})
	tables := make([]string, 0, 5)
	for _, ch := range []domain.ChannelName{
		domain.ChannelSMSModem,
		domain.ChannelWhatsApp,
		domain.ChannelVoice,
		domain.ChannelTelegram,
		domain.ChannelEmail,
	} {
		table := ch.OutboxTable()
		if _, ok := seen[table]; ok {
			continue
		}
		seen[table] = struct{}{}
		tables = append(tables, table)
	}
	return tables
}

func createOutboxTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_outbox_tables",
		Migrate: func(tx *gorm.DB) error {
			for _, table := range outboxTables() {
				if err := tx.Table(table).AutoMigrate(&repository.OutboxModel{}); err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			for _, table := range outboxTables() {
				if err := tx.Migrator().DropTable(table); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func createClientTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_client_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ClientModel{}); err != nil {
				return err
			}
			for _, table := range []string{repository.ContactTableWhatsApp, repository.ContactTableVoice} {
				if err := tx.Table(table).AutoMigrate(&repository.AlarmContactModel{}); err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.ClientModel{},
				repository.ContactTableWhatsApp,
				repository.ContactTableVoice,
			)
		},
	}
}

func createTelegramTables(observationsTable string) *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_telegram_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ChatBindingModel{}); err != nil {
				return err
			}
			return tx.Table(observationsTable).AutoMigrate(&repository.ObservationModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ChatBindingModel{}, observationsTable)
		},
	}
}
