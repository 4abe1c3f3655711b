package store

import (
	"context"
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Postgres is the gorm-backed Store.
type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	// TranslateError maps driver errors (SQLSTATE 23505 among them) onto
	// gorm's sentinels; the duplicate-key checks in InsertOpenings and the
	// account ledger rely on errors.Is(err, gorm.ErrDuplicatedKey).
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&Battle{}, &BattleBox{}, &BattleParticipant{}, &BattleOpening{},
		&AccountEntry{}, &CatalogItem{},
	); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// DB exposes the underlying handle for the account ledger and catalog, which
// share the connection.
func (s *Postgres) DB() *gorm.DB { return s.db }

func (s *Postgres) CreateBattle(ctx context.Context, b *Battle, boxes []BattleBox) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(b).Error; err != nil {
			return err
		}
		if len(boxes) == 0 {
			return nil
		}
		return tx.Create(&boxes).Error
	})
}

func (s *Postgres) GetBattle(ctx context.Context, id string) (*Battle, error) {
	var b Battle
	err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Postgres) UpdateBattleStatus(ctx context.Context, id, status, cancelReason string) error {
	return s.db.WithContext(ctx).Model(&Battle{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "cancel_reason": cancelReason}).Error
}

func (s *Postgres) UpdateCurrentBox(ctx context.Context, id string, box int) error {
	return s.db.WithContext(ctx).Model(&Battle{}).Where("id = ?", id).
		Update("current_box", box).Error
}

func (s *Postgres) ListBoxes(ctx context.Context, battleID string) ([]BattleBox, error) {
	var out []BattleBox
	err := s.db.WithContext(ctx).Where("battle_id = ?", battleID).
		Order("sequence asc").Find(&out).Error
	return out, err
}

func (s *Postgres) AddParticipant(ctx context.Context, p *BattleParticipant) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Postgres) RemoveParticipant(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&BattleParticipant{}, "id = ?", id).Error
}

func (s *Postgres) UpdateParticipantPosition(ctx context.Context, id string, position int) error {
	return s.db.WithContext(ctx).Model(&BattleParticipant{}).Where("id = ?", id).
		Update("position", position).Error
}

func (s *Postgres) ListParticipants(ctx context.Context, battleID string) ([]BattleParticipant, error) {
	var out []BattleParticipant
	err := s.db.WithContext(ctx).Where("battle_id = ?", battleID).
		Order("position asc").Find(&out).Error
	return out, err
}

func (s *Postgres) InsertOpenings(ctx context.Context, rows []BattleOpening) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateOpening
	}
	return err
}

func (s *Postgres) ListOpenings(ctx context.Context, battleID string) ([]BattleOpening, error) {
	var out []BattleOpening
	err := s.db.WithContext(ctx).Where("battle_id = ?", battleID).
		Order("box_instance asc, position asc").Find(&out).Error
	return out, err
}
