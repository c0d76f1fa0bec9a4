package invitees

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/models"
)

// ContactStore is the persistence an import needs.
type ContactStore interface {
	FindByPhoneInGroup(ctx context.Context, groupID uuid.UUID, phone string) (*models.Invitee, error)
	InviterByName(ctx context.Context, groupID uuid.UUID, name string) (uuid.UUID, bool, error)
	CategoryByName(ctx context.Context, name string) (*models.Category, error)
	Create(ctx context.Context, i *models.Invitee) error
	Update(ctx context.Context, i *models.Invitee) error
}

// Importer upserts contacts parsed from a spreadsheet into one inviter group.
// Rows are matched on phone digits within the group; a match is updated in place.
type Importer struct {
	store   ContactStore
	auditor lifecycle.Auditor
	logger  *zap.Logger
}

// NewImporter creates an importer.
func NewImporter(store ContactStore, auditor lifecycle.Auditor, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: store, auditor: auditor, logger: logger}
}

// Import processes rows (header first) for groupID. A failing row never stops the import.
func (im *Importer) Import(ctx context.Context, rows [][]string, groupID uuid.UUID, actor models.Actor) (*ImportSummary, error) {
	if len(rows) < 2 {
		return nil, ErrEmptySheet
	}
	idx, err := HeaderIndex(rows[0])
	if err != nil {
		return nil, err
	}
	sum := &ImportSummary{Rows: []RowResult{}}
	inviters := map[string]uuid.UUID{}
	categories := map[string]*uuid.UUID{}

	for n, raw := range rows[1:] {
		if IsBlank(raw) {
			continue
		}
		line := n + 2
		cr, err := ParseRow(raw, idx, line)
		if err != nil {
			sum.Add(RowResult{Line: line, Name: cr.Name, Outcome: RowSkipped, Reason: err.Error()})
			continue
		}
		res := im.importRow(ctx, cr, groupID, actor, inviters, categories)
		sum.Add(res)
	}
	im.logger.Info("contacts imported",
		zap.String("group_id", groupID.String()),
		zap.Int("created", sum.Created),
		zap.Int("updated", sum.Updated),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed))
	if im.auditor != nil && sum.Created+sum.Updated > 0 {
		entry := models.AuditLog{
			Action:    "import_invitees",
			TableName: "invitees",
			NewValue:  fmt.Sprintf("group=%s created=%d updated=%d skipped=%d failed=%d", groupID, sum.Created, sum.Updated, sum.Skipped, sum.Failed),
			IPAddress: actor.IP,
		}
		if actor.UserID != uuid.Nil {
			uid := actor.UserID
			entry.UserID = &uid
		}
		if err := im.auditor.Record(ctx, entry); err != nil {
			im.logger.Warn("audit failed", zap.Error(err), zap.String("action", entry.Action))
		}
	}
	return sum, nil
}

func (im *Importer) importRow(ctx context.Context, cr ContactRow, groupID uuid.UUID, actor models.Actor,
	inviters map[string]uuid.UUID, categories map[string]*uuid.UUID) RowResult {
	res := RowResult{Line: cr.Line, Name: cr.Name}

	var inviterID *uuid.UUID
	if cr.Inviter != "" {
		id, ok := inviters[cr.Inviter]
		if !ok {
			var created bool
			var err error
			id, created, err = im.store.InviterByName(ctx, groupID, cr.Inviter)
			if err != nil {
				res.Outcome, res.Reason = RowFailed, "failed to resolve inviter"
				im.logger.Warn("import inviter", zap.Error(err), zap.Int("line", cr.Line))
				return res
			}
			if created {
				res.Warnings = append(res.Warnings, fmt.Sprintf("Inviter %q created", cr.Inviter))
			}
			inviters[cr.Inviter] = id
		}
		inviterID = &id
	}

	var categoryID *uuid.UUID
	if cr.Category != "" {
		id, ok := categories[cr.Category]
		if !ok {
			c, err := im.store.CategoryByName(ctx, cr.Category)
			if err != nil && !errors.Is(err, lifecycle.ErrNotFound) {
				res.Outcome, res.Reason = RowFailed, "failed to resolve category"
				return res
			}
			if c != nil {
				id = &c.ID
			}
			categories[cr.Category] = id
		}
		if id == nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Category %q not found, imported without category", cr.Category))
		}
		categoryID = id
	}

	existing, err := im.store.FindByPhoneInGroup(ctx, groupID, cr.Phone)
	if err != nil && !errors.Is(err, lifecycle.ErrNotFound) {
		res.Outcome, res.Reason = RowFailed, "failed to look up contact"
		return res
	}
	if existing != nil {
		apply(existing, cr, inviterID, categoryID)
		if err := im.store.Update(ctx, existing); err != nil {
			res.Outcome, res.Reason = RowFailed, "failed to update contact"
			return res
		}
		res.Outcome, res.InviteeID = RowUpdated, existing.ID.String()
		return res
	}

	inv := &models.Invitee{InviterGroupID: groupID, Phone: cr.Phone}
	if actor.UserID != uuid.Nil {
		uid := actor.UserID
		inv.CreatedBy = &uid
	}
	apply(inv, cr, inviterID, categoryID)
	if err := im.store.Create(ctx, inv); err != nil {
		res.Outcome, res.Reason = RowFailed, "failed to create contact"
		im.logger.Warn("import create", zap.Error(err), zap.Int("line", cr.Line))
		return res
	}
	res.Outcome, res.InviteeID = RowCreated, inv.ID.String()
	return res
}

// apply copies the non-empty row fields onto inv.
func apply(inv *models.Invitee, cr ContactRow, inviterID, categoryID *uuid.UUID) {
	inv.Name = cr.Name
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&inv.Email, cr.Email)
	set(&inv.SecondaryPhone, cr.SecondaryPhone)
	set(&inv.Title, cr.Title)
	set(&inv.Company, cr.Company)
	set(&inv.Position, cr.Position)
	if cr.PlusOne != nil {
		inv.PlusOne = *cr.PlusOne
	}
	if inviterID != nil {
		inv.InviterID = inviterID
	}
	if categoryID != nil {
		inv.CategoryID = categoryID
	}
}
