package storage

import (
	"context"
	"errors"
	"log"

	"livedesk/backend/internal/config"
	"livedesk/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Storage is the persistence surface the coordination core depends on.
// Implementations back users, conversations and messages with PostgreSQL and
// keep the presence mirror and snapshot version counter in Redis.
type Storage interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SetUserOnline(ctx context.Context, id string, online bool) error
	// AdjustLiveCount atomically applies delta to the identity's
	// concurrent-conversation count, floored at zero, and returns the
	// resulting value. This is the only way the count is ever written.
	AdjustLiveCount(ctx context.Context, id string, delta int) (int, error)

	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	// CloseConversation flips the active flag exactly once. It reports
	// whether this call performed the flip; false means the conversation
	// was already ended (or unknown).
	CloseConversation(ctx context.Context, id string) (bool, error)
	ActiveConversationsFor(ctx context.Context, userID string) ([]models.Conversation, error)
	ConversationsFor(ctx context.Context, userID string, page, limit int) ([]models.Conversation, int64, error)

	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]models.Message, error)

	AddPresence(ctx context.Context, role models.Role, userID string) error
	RemovePresence(ctx context.Context, role models.Role, userID string) error
	ListPresence(ctx context.Context, role models.Role) ([]string, error)
	// NextPresenceVersion returns a monotonically increasing version for
	// presence snapshots; it survives process restarts.
	NextPresenceVersion(ctx context.Context) (uint64, error)
}

// Service implements Storage on top of gorm (PostgreSQL) and go-redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb}
}

// GetUserByID returns the user, or (nil, nil) when the id is unknown.
func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetUserOnline flips the persisted online flag.
func (s *Service) SetUserOnline(ctx context.Context, id string, online bool) error {
	return s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("is_online", online).Error
}

// AdjustLiveCount applies delta in a single statement so concurrent callers
// (assignment, normal end, disconnect reconciliation) never race on a
// read-then-write. GREATEST keeps the count from going negative even when a
// decrement races a disconnect.
func (s *Service) AdjustLiveCount(ctx context.Context, id string, delta int) (int, error) {
	var count int
	err := withRetry(ctx, func() error {
		res := s.DB.WithContext(ctx).Raw(
			`UPDATE users
			 SET current_chats = GREATEST(current_chats + ?, 0), updated_at = NOW()
			 WHERE id = ?
			 RETURNING current_chats`, delta, id).Scan(&count)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CreateConversation persists the conversation with its two participants.
func (s *Service) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return s.DB.WithContext(ctx).Create(conv).Error
}

// GetConversationByID loads the conversation with participants and their
// users, or (nil, nil) when the id is unknown.
func (s *Service) GetConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.WithContext(ctx).
		Preload("Participants.User").
		First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CloseConversation is a compare-and-flip: the WHERE clause on is_active
// guarantees only the first of concurrent end attempts reports true.
func (s *Service) CloseConversation(ctx context.Context, id string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ActiveConversationsFor returns every active conversation the identity
// participates in, with participants preloaded.
func (s *Service) ActiveConversationsFor(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.DB.WithContext(ctx).
		Joins("JOIN participants ON participants.conversation_id = conversations.id").
		Where("participants.user_id = ? AND conversations.is_active = ?", userID, true).
		Preload("Participants.User").
		Find(&convs).Error
	if err != nil {
		log.Printf("ERROR: Failed to load active conversations for %s: %v", userID, err)
		return nil, err
	}
	return convs, nil
}

// ConversationsFor returns one page of the identity's conversation history,
// most recent first, plus the total count for pagination.
func (s *Service) ConversationsFor(ctx context.Context, userID string, page, limit int) ([]models.Conversation, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}

	base := s.DB.WithContext(ctx).Model(&models.Conversation{}).
		Joins("JOIN participants ON participants.conversation_id = conversations.id").
		Where("participants.user_id = ?", userID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var convs []models.Conversation
	err := base.
		Order("conversations.created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Preload("Participants.User").
		Find(&convs).Error
	if err != nil {
		return nil, 0, err
	}
	return convs, total, nil
}

// SaveMessage appends the message; CreatedAt and ID are filled by the store
// and together define the conversation's delivery order.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	return withRetry(ctx, func() error {
		return s.DB.WithContext(ctx).Create(msg).Error
	})
}

// GetMessages returns the conversation's full ordered message sequence.
func (s *Service) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc, id asc").
		Find(&msgs).Error
	if err != nil {
		log.Printf("ERROR: Failed to get messages for conversation %s: %v", conversationID, err)
		return nil, err
	}
	return msgs, nil
}

func presenceKey(role models.Role) string {
	return "presence:" + string(role) + "s"
}

// AddPresence records the identity in the Redis presence set for its role.
func (s *Service) AddPresence(ctx context.Context, role models.Role, userID string) error {
	return s.Redis.SAdd(ctx, presenceKey(role), userID).Err()
}

// RemovePresence drops the identity from the Redis presence set.
func (s *Service) RemovePresence(ctx context.Context, role models.Role, userID string) error {
	return s.Redis.SRem(ctx, presenceKey(role), userID).Err()
}

// ListPresence returns the members of a role's presence set.
func (s *Service) ListPresence(ctx context.Context, role models.Role) ([]string, error) {
	return s.Redis.SMembers(ctx, presenceKey(role)).Result()
}

// NextPresenceVersion increments the snapshot counter in Redis so versions
// stay monotonic across coordinator restarts.
func (s *Service) NextPresenceVersion(ctx context.Context) (uint64, error) {
	v, err := s.Redis.Incr(ctx, "presence:version").Result()
	if err != nil {
		return 0, err
	}
	return uint64(v), nil
}
