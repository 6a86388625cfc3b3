package services

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/logging"
	"github.com/nsendoda/suggestion-box/internal/server/auth"
	"github.com/nsendoda/suggestion-box/internal/server/models"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/repomanager"
)

// LetterService is the entry point for everything that creates or moves a
// letter. Owner-scoped methods take the already authorized owner id.
//
// Transitions:
//
//	inbox            -> held                 (Draw only)
//	held            <-> in_progress
//	held, in_progress -> done, rejected
//	done, rejected   -> held, in_progress    (reopen; quota rechecked)
//	done            <-> rejected             (reopen)
//
// Nothing moves back into inbox. Setting a letter's current status again
// succeeds and only refreshes updatedAt.
type LetterService struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	quota       *QuotaEngine
	draw        *DrawSelector
	logger      logging.Logger
	now         Clock
	loc         *time.Location
	allowReopen bool

	receiptSecret []byte
	receiptTTL    time.Duration
}

type LetterServiceOptions struct {
	Location      *time.Location
	AllowReopen   bool
	ReceiptSecret []byte
	ReceiptTTL    time.Duration
}

func NewLetterService(db *sql.DB, m repomanager.RepositoryManager, quota *QuotaEngine, draw *DrawSelector,
	logger logging.Logger, now Clock, opts LetterServiceOptions) *LetterService {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &LetterService{
		db:            db,
		repos:         m,
		quota:         quota,
		draw:          draw,
		logger:        logger.With("module", "letters"),
		now:           utc(now),
		loc:           loc,
		allowReopen:   opts.AllowReopen,
		receiptSecret: opts.ReceiptSecret,
		receiptTTL:    opts.ReceiptTTL,
	}
}

// Submit files a new inbox letter for ownerID. Content is trimmed and must
// be 1 to 200 characters.
func (s *LetterService) Submit(ctx context.Context, ownerID, content string) (*models.Letter, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	ownerID = NormalizeOwnerID(ownerID)
	exists, err := s.repos.Owners(s.db).Exists(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, common.ErrOwnerNotFound
	}

	now := s.now()
	letter := &models.Letter{
		OwnerID:   ownerID,
		Content:   content,
		Status:    models.StatusInbox,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Letters(s.db).Create(ctx, letter); err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "letter submitted", "owner", ownerID, "letter", letter.ID)
	return localize(letter, s.loc), nil
}

// Draw admits a random inbox letter. See DrawSelector.Draw.
func (s *LetterService) Draw(ctx context.Context, ownerID string) (*models.Letter, error) {
	letter, err := s.draw.Draw(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorQuotaExceeded) {
			s.logger.Info(ctx, "draw refused", "owner", ownerID, "reason", err.Error())
		}
		return nil, err
	}
	return localize(letter, s.loc), nil
}

// SetStatus moves a letter to status, which must be one of the five
// status names. Any move out of in_progress resets progress to 0.
func (s *LetterService) SetStatus(ctx context.Context, ownerID string, letterID int64, status string) (*models.Letter, error) {
	target, ok := models.ParseStatus(status)
	if !ok {
		return nil, common.ErrInvalidStatus
	}

	letter, err := s.ownedLetter(ctx, ownerID, letterID)
	if err != nil {
		return nil, err
	}

	switch {
	case letter.Status == target:
		err = s.transition(ctx, ownerID, letterID, []models.Status{target}, target)
	case !slices.Contains(s.sources(target), letter.Status):
		err = common.ErrTransitionNotAllowed
	case target.IsActive() && !letter.Status.IsActive():
		err = s.quota.AdmitForReturn(ctx, ownerID, letterID, target)
	default:
		err = s.transition(ctx, ownerID, letterID, []models.Status{letter.Status}, target)
	}
	if err != nil {
		return nil, err
	}
	return s.get(ctx, letterID)
}

// sources lists the statuses a letter may move to target from.
func (s *LetterService) sources(target models.Status) []models.Status {
	var from []models.Status
	switch target {
	case models.StatusHeld:
		from = []models.Status{models.StatusInProgress}
	case models.StatusInProgress:
		from = []models.Status{models.StatusHeld}
	case models.StatusDone, models.StatusRejected:
		from = []models.Status{models.StatusHeld, models.StatusInProgress}
	default:
		return nil
	}
	if s.allowReopen {
		for _, st := range []models.Status{models.StatusDone, models.StatusRejected} {
			if st != target {
				from = append(from, st)
			}
		}
	}
	return from
}

// transition applies a move that needs no quota check. The letter's
// status is part of the WHERE clause; losing a race reports a conflict.
func (s *LetterService) transition(ctx context.Context, ownerID string, letterID int64, from []models.Status, to models.Status) error {
	ok, err := s.repos.Letters(s.db).Transition(ctx, ownerID, letterID, from, to, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrTransitionNotAllowed
	}
	return nil
}

// SetProgress records progress (0 to 100) on a letter that is in progress.
func (s *LetterService) SetProgress(ctx context.Context, ownerID string, letterID int64, progress int) (*models.Letter, error) {
	if progress < 0 || progress > 100 {
		return nil, common.ErrInvalidRange
	}
	ok, err := s.repos.Letters(s.db).SetProgress(ctx, ownerID, letterID, progress, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.ownedLetter(ctx, ownerID, letterID); err != nil {
			return nil, err
		}
		return nil, common.ErrNotInProgress
	}
	return s.get(ctx, letterID)
}

// List returns the owner's letters, most recently updated first. Inbox
// letters are left out unless includeInbox is set.
func (s *LetterService) List(ctx context.Context, ownerID string, includeInbox bool) ([]models.Letter, error) {
	letters, err := s.repos.Letters(s.db).ListByOwner(ctx, ownerID, includeInbox)
	if err != nil {
		return nil, err
	}
	for i := range letters {
		localize(&letters[i], s.loc)
	}
	return letters, nil
}

// IssueReceipt signs a receipt the sender can later pass to Track.
func (s *LetterService) IssueReceipt(letter *models.Letter) (string, error) {
	return auth.GenerateReceipt(letter.OwnerID, letter.ID, s.receiptSecret, s.receiptTTL, s.now())
}

// Track returns the letter named by a sender receipt.
func (s *LetterService) Track(ctx context.Context, receipt string) (*models.Letter, error) {
	ownerID, letterID, err := auth.ParseReceipt(receipt, s.receiptSecret, s.now())
	if err != nil {
		return nil, err
	}
	letter, err := s.get(ctx, letterID)
	if err != nil {
		return nil, err
	}
	if letter.OwnerID != ownerID {
		return nil, common.ErrInvalidReceipt
	}
	return letter, nil
}

func (s *LetterService) ownedLetter(ctx context.Context, ownerID string, letterID int64) (*models.Letter, error) {
	letter, err := s.repos.Letters(s.db).Get(ctx, letterID)
	if err != nil {
		return nil, err
	}
	if letter.OwnerID != ownerID {
		return nil, common.ErrNotOwner
	}
	return letter, nil
}

func (s *LetterService) get(ctx context.Context, letterID int64) (*models.Letter, error) {
	letter, err := s.repos.Letters(s.db).Get(ctx, letterID)
	if err != nil {
		return nil, err
	}
	return localize(letter, s.loc), nil
}
