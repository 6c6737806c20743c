package service

import (
	"context"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"house-expenses/internal/classifier"
	"house-expenses/internal/model"
	"house-expenses/internal/repository"
)

const (
	settlementPrefix = "[отчёт прораба]"
	fallbackCategory = "без категории"
)

// Outcome distinguishes the three results the presentation layer renders
// differently.
type Outcome int

const (
	// OutcomeEmpty: nothing was provided to record.
	OutcomeEmpty Outcome = iota
	// OutcomeNothingUnderstood: input was provided but no item could be
	// recorded from it.
	OutcomeNothingUnderstood
	// OutcomeRecorded: at least one item was written to the ledger.
	OutcomeRecorded
)

// Recorded is one successfully persisted position, with its category
// resolved to the stored name. Category is empty for foreman_give items.
type Recorded struct {
	Kind     string
	Category string
	Amount   decimal.Decimal
}

// IntakeResult summarizes what one inbound message did to the ledger.
type IntakeResult struct {
	Outcome      Outcome
	Recorded     []Recorded
	Skipped      int
	Unrecognized int
	// Balance is recomputed in the same transaction as the writes and is
	// present only when something was recorded.
	Balance *model.ForemanBalance
}

// IntakeService classifies inbound messages and applies the resulting items
// to the ledger as one atomic batch.
type IntakeService struct {
	db         *gorm.DB
	classifier classifier.Classifier
	categories *repository.CategoryRepository
	ledger     *repository.LedgerRepository
}

func NewIntakeService(db *gorm.DB, cls classifier.Classifier, categories *repository.CategoryRepository, ledger *repository.LedgerRepository) *IntakeService {
	return &IntakeService{db: db, classifier: cls, categories: categories, ledger: ledger}
}

// Record classifies the message and applies the items. The classifier is
// network-bound and is called before any transaction opens; its failure
// degrades to a single unrecognized item rather than an error.
func (s *IntakeService) Record(ctx context.Context, user *model.User, text string, photo []byte) (*IntakeResult, error) {
	if strings.TrimSpace(text) == "" && len(photo) == 0 {
		return &IntakeResult{Outcome: OutcomeEmpty}, nil
	}
	return s.ApplyItems(ctx, user, s.classify(ctx, user, text, photo))
}

// RecordSettlement handles the /settle flow: the reply describes what the
// foreman spent money on, so the first usable item is coerced into a
// foreman report regardless of how it was classified.
func (s *IntakeService) RecordSettlement(ctx context.Context, user *model.User, text string) (*IntakeResult, error) {
	if strings.TrimSpace(text) == "" {
		return &IntakeResult{Outcome: OutcomeEmpty}, nil
	}

	for _, item := range s.classify(ctx, user, text, nil) {
		if !item.Amount.IsPositive() {
			continue
		}
		category := item.Category
		if strings.TrimSpace(category) == "" {
			category = fallbackCategory
		}
		description := item.Description
		if description == "" {
			description = text
		}
		return s.ApplyItems(ctx, user, []classifier.Item{{
			Kind:        classifier.KindForemanReport,
			Category:    category,
			Amount:      item.Amount,
			Description: description,
		}})
	}

	return &IntakeResult{Outcome: OutcomeNothingUnderstood, Unrecognized: 1}, nil
}

func (s *IntakeService) classify(ctx context.Context, user *model.User, text string, photo []byte) []classifier.Item {
	known, err := s.categories.ListUsedBy(ctx, user.ID)
	if err != nil {
		log.Printf("list known categories: %v", err)
	}
	names := make([]string, 0, len(known))
	for _, category := range known {
		names = append(names, category.Name)
	}

	items, err := s.classifier.Classify(ctx, text, photo, names)
	if err != nil || len(items) == 0 {
		log.Printf("classify message: %v: %v", ErrClassificationUnavailable, err)
		return classifier.Unrecognized()
	}
	return items
}

// ApplyItems writes the whole batch inside one transaction: either every
// validated item commits or none do. Malformed items are skipped and
// counted, never failing the batch.
func (s *IntakeService) ApplyItems(ctx context.Context, user *model.User, items []classifier.Item) (*IntakeResult, error) {
	result := &IntakeResult{}
	if len(items) == 0 {
		return result, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categories := s.categories.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		for _, item := range items {
			switch item.Kind {
			case classifier.KindExpense, classifier.KindForemanReport:
				if !item.Amount.IsPositive() || strings.TrimSpace(item.Category) == "" {
					result.Skipped++
					continue
				}
				category, err := categories.GetOrCreate(ctx, item.Category)
				if err != nil {
					return err
				}
				isForeman := item.Kind == classifier.KindForemanReport
				description := item.Description
				if isForeman {
					description = strings.TrimSpace(settlementPrefix + " " + description)
				}
				expense := model.Expense{
					UserID:           user.ID,
					CategoryID:       category.ID,
					Amount:           item.Amount,
					Description:      description,
					IsForemanExpense: isForeman,
				}
				if err := ledger.CreateExpense(ctx, &expense); err != nil {
					return err
				}
				result.Recorded = append(result.Recorded, Recorded{
					Kind:     item.Kind,
					Category: category.Name,
					Amount:   item.Amount,
				})

			case classifier.KindForemanGive:
				if !item.Amount.IsPositive() {
					result.Skipped++
					continue
				}
				transfer := model.ForemanTransaction{
					UserID:      user.ID,
					Amount:      item.Amount,
					Description: item.Description,
				}
				if err := ledger.CreateForemanTransaction(ctx, &transfer); err != nil {
					return err
				}
				result.Recorded = append(result.Recorded, Recorded{
					Kind:   item.Kind,
					Amount: item.Amount,
				})

			default:
				result.Unrecognized++
			}
		}

		if len(result.Recorded) > 0 {
			balance, err := ledger.ForemanBalance(ctx, user.ID)
			if err != nil {
				return err
			}
			result.Balance = &balance
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage("apply items", err)
	}

	if len(result.Recorded) > 0 {
		result.Outcome = OutcomeRecorded
	} else if result.Unrecognized > 0 || result.Skipped > 0 {
		result.Outcome = OutcomeNothingUnderstood
	}
	return result, nil
}
