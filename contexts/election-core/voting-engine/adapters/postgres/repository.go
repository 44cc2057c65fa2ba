package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ballotbox/contexts/election-core/voting-engine/domain/entities"
	domainerrors "ballotbox/contexts/election-core/voting-engine/domain/errors"
	"ballotbox/contexts/election-core/voting-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
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

func (r *Repository) GetElection(ctx context.Context, electionID string) (entities.Election, error) {
	var row electionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(electionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, domainerrors.ErrElectionNotFound
		}
		return entities.Election{}, r.logError("election_repo_get_election_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return row.toEntity()
}

func (r *Repository) ListPositions(ctx context.Context, electionID string) ([]entities.Position, error) {
	var rows []positionModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("display_order ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_positions_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]entities.Position, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListCandidates(ctx context.Context, electionID string) ([]entities.Candidate, error) {
	var rows []candidateModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_candidates_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]entities.Candidate, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// InsertVote is a plain insert on purpose. The uq_votes_election_voter
// constraint is the single arbiter of the one-vote rule, so a concurrent
// duplicate always surfaces as ErrAlreadyVoted.
func (r *Repository) InsertVote(ctx context.Context, vote entities.Vote) error {
	row, err := voteModelFromEntity(vote)
	if err != nil {
		return r.logError("election_repo_encode_vote_failed", err,
			"vote_id", strings.TrimSpace(vote.VoteID),
			"election_id", strings.TrimSpace(vote.ElectionID),
		)
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyVoted
		}
		return r.logError("election_repo_insert_vote_failed", err,
			"vote_id", strings.TrimSpace(vote.VoteID),
			"election_id", strings.TrimSpace(vote.ElectionID),
		)
	}
	return nil
}

func (r *Repository) GetVoteByVoter(
	ctx context.Context,
	electionID string,
	voterID string,
) (entities.Vote, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, false, nil
		}
		return entities.Vote{}, false, r.logError("election_repo_get_vote_by_voter_failed", err,
			"election_id", strings.TrimSpace(electionID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	vote, err := row.toEntity()
	if err != nil {
		return entities.Vote{}, false, r.logError("election_repo_decode_vote_failed", err,
			"vote_id", row.ID,
		)
	}
	return vote, true, nil
}

func (r *Repository) ListVotesByElection(ctx context.Context, electionID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("voted_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_votes_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		vote, err := row.toEntity()
		if err != nil {
			return nil, r.logError("election_repo_decode_vote_failed", err, "vote_id", row.ID)
		}
		items = append(items, vote)
	}
	return items, nil
}

func (r *Repository) CountVotesByElection(ctx context.Context, electionID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Count(&count).Error; err != nil {
		return 0, r.logError("election_repo_count_votes_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return int(count), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("election_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("election_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("election_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("election_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "election-core/voting-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("election repository operation failed", fields...)
	return err
}

type electionModel struct {
	ID                string    `gorm:"column:id;primaryKey"`
	Title             string    `gorm:"column:title"`
	Method            string    `gorm:"column:method"`
	MaxSelection      int       `gorm:"column:max_selection"`
	RankingLevels     int       `gorm:"column:ranking_levels"`
	AllowWriteIn      bool      `gorm:"column:allow_write_in"`
	AllowAbstain      bool      `gorm:"column:allow_abstain"`
	IsUniversal       bool      `gorm:"column:is_universal"`
	Eligibility       []byte    `gorm:"column:eligibility;type:jsonb"`
	StartTime         time.Time `gorm:"column:start_time"`
	EndTime           time.Time `gorm:"column:end_time"`
	Status            string    `gorm:"column:status"`
	ParticipationGoal float64   `gorm:"column:participation_goal"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (electionModel) TableName() string {
	return "elections"
}

func (m electionModel) toEntity() (entities.Election, error) {
	var rules []entities.EligibilityRule
	if len(m.Eligibility) > 0 {
		if err := json.Unmarshal(m.Eligibility, &rules); err != nil {
			return entities.Election{}, err
		}
	}
	return entities.Election{
		ElectionID:        m.ID,
		Title:             m.Title,
		Method:            entities.VotingMethod(m.Method),
		MaxSelection:      m.MaxSelection,
		RankingLevels:     m.RankingLevels,
		AllowWriteIn:      m.AllowWriteIn,
		AllowAbstain:      m.AllowAbstain,
		IsUniversal:       m.IsUniversal,
		Eligibility:       rules,
		StartTime:         m.StartTime.UTC(),
		EndTime:           m.EndTime.UTC(),
		Status:            entities.ElectionStatus(m.Status),
		ParticipationGoal: m.ParticipationGoal,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}, nil
}

type positionModel struct {
	ID            string `gorm:"column:id;primaryKey"`
	ElectionID    string `gorm:"column:election_id"`
	Name          string `gorm:"column:name"`
	Method        string `gorm:"column:method"`
	MaxSelection  int    `gorm:"column:max_selection"`
	RankingLevels int    `gorm:"column:ranking_levels"`
	WinnerCount   int    `gorm:"column:winner_count"`
	AllowAbstain  bool   `gorm:"column:allow_abstain"`
	DisplayOrder  int    `gorm:"column:display_order"`
}

func (positionModel) TableName() string {
	return "election_positions"
}

func (m positionModel) toEntity() entities.Position {
	return entities.Position{
		PositionID:    m.ID,
		ElectionID:    m.ElectionID,
		Name:          m.Name,
		Method:        entities.VotingMethod(m.Method),
		MaxSelection:  m.MaxSelection,
		RankingLevels: m.RankingLevels,
		WinnerCount:   m.WinnerCount,
		AllowAbstain:  m.AllowAbstain,
		DisplayOrder:  m.DisplayOrder,
	}
}

type candidateModel struct {
	ID          string `gorm:"column:id;primaryKey"`
	ElectionID  string `gorm:"column:election_id"`
	PositionID  string `gorm:"column:position_id"`
	UserID      string `gorm:"column:user_id"`
	DisplayName string `gorm:"column:display_name"`
	Approved    bool   `gorm:"column:approved"`
}

func (candidateModel) TableName() string {
	return "election_candidates"
}

func (m candidateModel) toEntity() entities.Candidate {
	return entities.Candidate{
		CandidateID: m.ID,
		ElectionID:  m.ElectionID,
		PositionID:  m.PositionID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		Approved:    m.Approved,
	}
}

type voteModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ElectionID string    `gorm:"column:election_id;uniqueIndex:uq_votes_election_voter"`
	VoterID    string    `gorm:"column:voter_id;uniqueIndex:uq_votes_election_voter"`
	VoteData   []byte    `gorm:"column:vote_data;type:jsonb"`
	VoteToken  string    `gorm:"column:vote_token"`
	VotedAt    time.Time `gorm:"column:voted_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func voteModelFromEntity(vote entities.Vote) (voteModel, error) {
	ballot, err := json.Marshal(vote.Ballot)
	if err != nil {
		return voteModel{}, err
	}
	row := voteModel{
		ID:         strings.TrimSpace(vote.VoteID),
		ElectionID: strings.TrimSpace(vote.ElectionID),
		VoterID:    strings.TrimSpace(vote.VoterID),
		VoteData:   ballot,
		VoteToken:  strings.TrimSpace(vote.Token),
		VotedAt:    vote.VotedAt.UTC(),
	}
	if row.VotedAt.IsZero() {
		row.VotedAt = time.Now().UTC()
	}
	return row, nil
}

func (m voteModel) toEntity() (entities.Vote, error) {
	var ballot entities.Ballot
	if len(m.VoteData) > 0 {
		if err := json.Unmarshal(m.VoteData, &ballot); err != nil {
			return entities.Vote{}, err
		}
	}
	return entities.Vote{
		VoteID:     m.ID,
		ElectionID: m.ElectionID,
		VoterID:    m.VoterID,
		Ballot:     ballot,
		Token:      m.VoteToken,
		VotedAt:    m.VotedAt.UTC(),
	}, nil
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "election_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// SystemClock satisfies ports.Clock with wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator satisfies ports.IDGenerator with random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.ElectionRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.Clock = SystemClock{}
var _ ports.IDGenerator = UUIDGenerator{}
