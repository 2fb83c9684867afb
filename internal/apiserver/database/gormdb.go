package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormDB implements Database on top of a gorm connection. The per-engine
// constructors only differ in how they open the dialector.
type gormDB struct {
	db *gorm.DB
}

func newGormDB(db *gorm.DB) (*gormDB, error) {
	if err := db.AutoMigrate(&Room{}, &Message{}); err != nil {
		return nil, err
	}
	return &gormDB{db: db}, nil
}

// Close closes the database connection
func (g *gormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *gormDB) SaveMessage(ctx context.Context, message *Message) error {
	return g.db.WithContext(ctx).Create(message).Error
}

func (g *gormDB) GetMessages(ctx context.Context, roomID string) ([]*Message, error) {
	var messages []*Message
	err := g.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp asc").
		Find(&messages).Error
	return messages, err
}

func (g *gormDB) GetMessagesWithPagination(ctx context.Context, roomID string, page, pageSize int) ([]*Message, error) {
	var messages []*Message
	offset := (page - 1) * pageSize
	err := g.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp asc").
		Offset(offset).
		Limit(pageSize).
		Find(&messages).Error
	return messages, err
}

func (g *gormDB) GetRecentMessages(ctx context.Context, roomID string, limit int) ([]*Message, error) {
	var messages []*Message
	err := g.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp desc").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// Newest-first from the query; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (g *gormDB) CreateRoom(ctx context.Context, roomID, name string) error {
	room := &Room{ID: roomID, Name: name}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(room).Error
}

func (g *gormDB) RoomExists(ctx context.Context, roomID string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&Room{}).
		Where("id = ?", roomID).
		Count(&count).Error
	return count > 0, err
}

func (g *gormDB) GetRooms(ctx context.Context) ([]*Room, error) {
	var rooms []*Room
	err := g.db.WithContext(ctx).
		Order("created_at desc").
		Find(&rooms).Error
	return rooms, err
}

func (g *gormDB) ArchiveRoom(ctx context.Context, roomID string) error {
	return g.db.WithContext(ctx).
		Model(&Room{}).
		Where("id = ?", roomID).
		Update("archived", true).Error
}
