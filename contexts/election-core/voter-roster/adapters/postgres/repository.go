package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ballotbox/contexts/election-core/voter-roster/domain/entities"
	domainerrors "ballotbox/contexts/election-core/voter-roster/domain/errors"
	"ballotbox/contexts/election-core/voter-roster/ports"

	"gorm.io/gorm"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetProfile(ctx context.Context, voterID string) (entities.VoterProfile, error) {
	var row profileModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(voterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoterProfile{}, domainerrors.ErrProfileNotFound
		}
		return entities.VoterProfile{}, r.logError("roster_repo_get_profile_failed", err,
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	return row.toEntity()
}

func (r *Repository) ListProfiles(ctx context.Context) ([]entities.VoterProfile, error) {
	var rows []profileModel
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("roster_repo_list_profiles_failed", err)
	}
	items := make([]entities.VoterProfile, 0, len(rows))
	for _, row := range rows {
		profile, err := row.toEntity()
		if err != nil {
			return nil, r.logError("roster_repo_decode_profile_failed", err, "voter_id", row.ID)
		}
		items = append(items, profile)
	}
	return items, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "election-core/voter-roster",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("roster repository operation failed", fields...)
	return err
}

type profileModel struct {
	ID              string    `gorm:"column:id;primaryKey"`
	FullName        string    `gorm:"column:full_name"`
	Department      string    `gorm:"column:department"`
	ClassLevel      string    `gorm:"column:class_level"`
	OrganizationIDs []byte    `gorm:"column:organization_ids;type:jsonb"`
	Enrolled        bool      `gorm:"column:enrolled"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (profileModel) TableName() string {
	return "voter_profiles"
}

func (m profileModel) toEntity() (entities.VoterProfile, error) {
	var organizations []string
	if len(m.OrganizationIDs) > 0 {
		if err := json.Unmarshal(m.OrganizationIDs, &organizations); err != nil {
			return entities.VoterProfile{}, err
		}
	}
	return entities.VoterProfile{
		VoterID:         m.ID,
		FullName:        m.FullName,
		Department:      m.Department,
		ClassLevel:      m.ClassLevel,
		OrganizationIDs: organizations,
		Enrolled:        m.Enrolled,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}, nil
}

var _ ports.ProfileRepository = (*Repository)(nil)
