package invitees

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/models"
)

type fakeContacts struct {
	contacts   []*models.Invitee
	inviters   map[string]uuid.UUID
	categories map[string]*models.Category
	failCreate string
}

func newFakeContacts() *fakeContacts {
	return &fakeContacts{inviters: map[string]uuid.UUID{}, categories: map[string]*models.Category{}}
}

func (f *fakeContacts) FindByPhoneInGroup(_ context.Context, groupID uuid.UUID, phone string) (*models.Invitee, error) {
	for _, c := range f.contacts {
		if c.InviterGroupID == groupID && lifecycle.PhoneDigits(c.Phone) == lifecycle.PhoneDigits(phone) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, lifecycle.ErrNotFound
}

func (f *fakeContacts) InviterByName(_ context.Context, _ uuid.UUID, name string) (uuid.UUID, bool, error) {
	if id, ok := f.inviters[name]; ok {
		return id, false, nil
	}
	id := uuid.New()
	f.inviters[name] = id
	return id, true, nil
}

func (f *fakeContacts) CategoryByName(_ context.Context, name string) (*models.Category, error) {
	if c, ok := f.categories[name]; ok {
		return c, nil
	}
	return nil, lifecycle.ErrNotFound
}

func (f *fakeContacts) Create(_ context.Context, i *models.Invitee) error {
	if i.Name == f.failCreate {
		return errors.New("insert failed")
	}
	i.ID = uuid.New()
	cp := *i
	f.contacts = append(f.contacts, &cp)
	return nil
}

func (f *fakeContacts) Update(_ context.Context, i *models.Invitee) error {
	for n, c := range f.contacts {
		if c.ID == i.ID {
			cp := *i
			f.contacts[n] = &cp
			return nil
		}
	}
	return lifecycle.ErrNotFound
}

type auditSink struct{ entries []models.AuditLog }

func (a *auditSink) Record(_ context.Context, e models.AuditLog) error {
	a.entries = append(a.entries, e)
	return nil
}

func TestImport(t *testing.T) {
	store := newFakeContacts()
	group := uuid.New()
	vip := &models.Category{ID: uuid.New(), Name: "VIP"}
	store.categories["VIP"] = vip
	store.contacts = append(store.contacts, &models.Invitee{ID: uuid.New(), Name: "Old Name", Phone: "079-111-1111", InviterGroupID: group})
	audit := &auditSink{}
	im := NewImporter(store, audit, nil)
	actor := models.Actor{UserID: uuid.New(), Role: models.RoleOrganizer, GroupID: &group}

	rows := [][]string{
		{"Name", "Phone", "Inviter", "Category", "Plus One"},
		{"Amal Haddad", "0791111111", "Hala", "VIP", "2"},
		{"Basil Nour", "0792222222", "Hala", "Press", ""},
		{"", "", "", "", ""},
		{"No Phone", "", "", "", ""},
		{"Broken", "0793333333", "", "", ""},
	}
	store.failCreate = "Broken"

	sum, err := im.Import(context.Background(), rows, group, actor)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Failed)

	updated := sum.Rows[0]
	assert.Equal(t, RowUpdated, updated.Outcome)
	assert.Equal(t, 2, updated.Line)
	assert.Equal(t, []string{`Inviter "Hala" created`}, updated.Warnings)
	assert.Equal(t, "Amal Haddad", store.contacts[0].Name)
	assert.Equal(t, vip.ID, *store.contacts[0].CategoryID)
	assert.Equal(t, 2, store.contacts[0].PlusOne)

	created := sum.Rows[1]
	assert.Equal(t, RowCreated, created.Outcome)
	assert.Equal(t, []string{`Category "Press" not found, imported without category`}, created.Warnings)
	assert.Equal(t, 6, sum.Rows[3].Line)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "import_invitees", audit.entries[0].Action)
}

func TestImport_BadHeader(t *testing.T) {
	im := NewImporter(newFakeContacts(), nil, nil)
	_, err := im.Import(context.Background(), [][]string{{"Amal", "0791111111"}, {"Basil", "0792222222"}}, uuid.New(), models.Actor{})
	require.Error(t, err)
}

func TestTargetGroup(t *testing.T) {
	g := uuid.New()
	other := uuid.New()

	got, err := TargetGroup(models.Actor{Role: models.RoleOrganizer, GroupID: &g}, nil)
	require.NoError(t, err)
	assert.Equal(t, g, got)

	_, err = TargetGroup(models.Actor{Role: models.RoleOrganizer, GroupID: &g}, &other)
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	_, err = TargetGroup(models.Actor{Role: models.RoleDirector}, nil)
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	_, err = TargetGroup(models.Actor{Role: models.RoleAdmin}, nil)
	assert.Error(t, err)

	got, err = TargetGroup(models.Actor{Role: models.RoleAdmin}, &other)
	require.NoError(t, err)
	assert.Equal(t, other, got)
}
