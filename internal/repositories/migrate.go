package repositories

import (
	"fmt"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"gorm.io/gorm"
)

// DefaultChangeChannel is the PostgreSQL NOTIFY channel the change trigger writes to
const DefaultChangeChannel = "alumni_changes"

// ChangeFeedTables are the PostgreSQL tables whose row changes are announced
// on the change channel
var ChangeFeedTables = []string{"users", "jobs", "events", "comments", "notifications"}

const changeTriggerFunction = `
CREATE OR REPLACE FUNCTION notify_alumni_change() RETURNS trigger AS $$
DECLARE
	new_row jsonb;
	old_row jsonb;
BEGIN
	IF TG_OP <> 'DELETE' THEN
		new_row := to_jsonb(NEW) - 'password';
	END IF;
	IF TG_OP <> 'INSERT' THEN
		old_row := to_jsonb(OLD) - 'password';
	END IF;
	PERFORM pg_notify('%s', json_build_object(
		'eventType', TG_OP,
		'table', TG_TABLE_NAME,
		'new', new_row,
		'old', old_row
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;`

// Migrate creates the PostgreSQL schema and installs the change-feed trigger
// announcing on channel
func Migrate(db *gorm.DB, channel string) error {
	if channel == "" {
		channel = DefaultChangeChannel
	}

	err := db.AutoMigrate(
		&models.Alumni{},
		&models.Job{},
		&models.Event{},
		&models.Comment{},
		&models.Like{},
		&models.SavedJob{},
		&models.EventRegistration{},
		&models.Connection{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := db.Exec(fmt.Sprintf(changeTriggerFunction, channel)).Error; err != nil {
		return fmt.Errorf("install change trigger function: %w", err)
	}
	for _, table := range ChangeFeedTables {
		stmts := []string{
			fmt.Sprintf(`DROP TRIGGER IF EXISTS %s_change_notify ON %s`, table, table),
			fmt.Sprintf(`CREATE TRIGGER %s_change_notify AFTER INSERT OR UPDATE OR DELETE ON %s
				FOR EACH ROW EXECUTE FUNCTION notify_alumni_change()`, table, table),
		}
		for _, stmt := range stmts {
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("install change trigger on %s: %w", table, err)
			}
		}
	}
	return nil
}
