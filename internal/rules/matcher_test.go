package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/models"
)

type fakeRules struct {
	rules []*models.Rule
	err   error
	last  models.RuleFilter
}

func (f *fakeRules) FindRules(_ context.Context, filter models.RuleFilter) ([]*models.Rule, error) {
	f.last = filter
	return f.rules, f.err
}

var student = models.UserContext{ID: "u1", TenantID: models.DefaultTenant, Roles: []string{"student"}}

func TestMatcher_RegistrationScenario(t *testing.T) {
	src := &fakeRules{rules: []*models.Rule{
		{ID: "reg", TenantID: models.DefaultTenant, Keywords: []string{"đăng ký"}, ResponseTemplate: "Vào mục Hoạt động.", Priority: 9, IsActive: true},
		{ID: "fee", TenantID: models.DefaultTenant, Keywords: []string{"học phí"}, ResponseTemplate: "Xem thông báo.", Priority: 5, IsActive: true},
	}}
	m := NewMatcher(src)

	res := m.Match(context.Background(), "đăng ký hoạt động như thế nào", student)
	require.NotNil(t, res)
	assert.Equal(t, "reg", res.Rule.ID)
	assert.GreaterOrEqual(t, res.Confidence, DefaultMinConfidence)
	assert.InDelta(t, (10.0/27.0+0.1)*1.2, res.AdjustedScore, 1e-9)

	assert.Equal(t, models.DefaultTenant, src.last.TenantID)
	assert.True(t, src.last.ActiveOnly)
	assert.Equal(t, []string{"student"}, src.last.Roles)
}

func TestMatcher_BelowFloor(t *testing.T) {
	src := &fakeRules{rules: []*models.Rule{
		{ID: "fee", Keywords: []string{"học phí"}, Priority: 5, IsActive: true},
	}}
	m := NewMatcher(src)
	assert.Nil(t, m.Match(context.Background(), "lịch thi cuối kỳ", student))
}

func TestMatcher_PatternWhenNoKeywords(t *testing.T) {
	src := &fakeRules{rules: []*models.Rule{
		{ID: "p", Pattern: "giờ mở cửa thư viện", Priority: 5, IsActive: true},
	}}
	res := NewMatcher(src).Match(context.Background(), "Giờ mở cửa thư viện?", student)
	require.NotNil(t, res)
	assert.Equal(t, 1.0, res.RawScore)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestMatcher_RBACAndTenant(t *testing.T) {
	src := &fakeRules{rules: []*models.Rule{
		{ID: "admin-only", Keywords: []string{"đăng ký"}, AllowedRoles: []string{"admin"}, Priority: 10, IsActive: true},
		{ID: "other-tenant", TenantID: "t2", Keywords: []string{"đăng ký"}, Priority: 10, IsActive: true},
		{ID: "inactive", Keywords: []string{"đăng ký"}, Priority: 10, IsActive: false},
	}}
	assert.Nil(t, NewMatcher(src).Match(context.Background(), "đăng ký", student))

	admin := models.UserContext{ID: "a", Roles: []string{"admin"}}
	res := NewMatcher(src).Match(context.Background(), "đăng ký", admin)
	require.NotNil(t, res)
	assert.Equal(t, "admin-only", res.Rule.ID)
}

func TestMatcher_StoreErrorIsNoMatch(t *testing.T) {
	src := &fakeRules{err: errors.New("db down")}
	assert.Nil(t, NewMatcher(src).Match(context.Background(), "đăng ký", student))
}

func TestMatcher_EmptyQuery(t *testing.T) {
	src := &fakeRules{rules: []*models.Rule{{ID: "x", Pattern: "x", IsActive: true}}}
	assert.Nil(t, NewMatcher(src).Match(context.Background(), "  !! ", student))
}

func TestMatcher_HigherPriorityWinsTie(t *testing.T) {
	src := &fakeRules{rules: []*models.Rule{
		{ID: "low", Keywords: []string{"học bổng"}, Priority: 3, IsActive: true},
		{ID: "high", Keywords: []string{"học bổng"}, Priority: 8, IsActive: true},
	}}
	res := NewMatcher(src, WithMinConfidence(0.1)).Match(context.Background(), "học bổng", student)
	require.NotNil(t, res)
	assert.Equal(t, "high", res.Rule.ID)
}

func TestMatcher_TieBreakIgnoresStoreOrder(t *testing.T) {
	t0 := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	rule := func(id string, created time.Time) *models.Rule {
		return &models.Rule{ID: id, Keywords: []string{"học bổng"}, Priority: 5, IsActive: true, CreatedAt: created}
	}
	tests := []struct {
		name  string
		rules []*models.Rule
		want  string
	}{
		{"newer first", []*models.Rule{rule("new", t0.Add(time.Hour)), rule("old", t0)}, "new"},
		{"older first", []*models.Rule{rule("old", t0), rule("new", t0.Add(time.Hour))}, "new"},
		{"same time by id", []*models.Rule{rule("b", t0), rule("a", t0)}, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewMatcher(&fakeRules{rules: tt.rules}).Match(context.Background(), "học bổng", student)
			require.NotNil(t, res)
			assert.Equal(t, tt.want, res.Rule.ID)
		})
	}
}

func TestOutranks_PriorityBreaksEqualScores(t *testing.T) {
	low := &MatchResult{Rule: &models.Rule{ID: "a", Priority: 4}, AdjustedScore: 0.6}
	high := &MatchResult{Rule: &models.Rule{ID: "b", Priority: 6}, AdjustedScore: 0.6}
	assert.True(t, outranks(high, low))
	assert.False(t, outranks(low, high))
}

func TestAdjustForPriority_Monotonic(t *testing.T) {
	for _, raw := range []float64{0, 0.2, 0.5, 0.9, 1} {
		prev := AdjustForPriority(raw, 1)
		for p := 2; p <= 10; p++ {
			cur := AdjustForPriority(raw, p)
			if cur < prev {
				t.Errorf("raw=%v: priority %d gives %v < %v", raw, p, cur, prev)
			}
			prev = cur
		}
	}
	assert.Equal(t, 0.5, AdjustForPriority(0.5, 0), "zero priority is neutral")
}

func TestMatcher_LevenshteinComparator(t *testing.T) {
	src := &fakeRules{rules: []*models.Rule{{ID: "r", Keywords: []string{"hoc phi"}, Priority: 5, IsActive: true}}}
	m := NewMatcher(src, WithComparator(ComparatorByName("levenshtein")))
	res := m.Match(context.Background(), "hoc phi", student)
	require.NotNil(t, res)
	assert.Equal(t, 1.0, res.Confidence)
}
