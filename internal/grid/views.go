package grid

import (
	"fmt"
	"maps"

	"github.com/samber/lo"

	"gridkit/internal/domain"
)

// ViewSet is the fixed list of views a table was built with.
type ViewSet struct {
	views []domain.View
	byKey map[string]domain.View
}

// NewViewSet validates views. Keys must be unique and at most one view may
// be the default.
func NewViewSet(views []domain.View) (*ViewSet, error) {
	vs := &ViewSet{views: views, byKey: make(map[string]domain.View, len(views))}
	defaults := 0
	for _, v := range views {
		if err := validate.Struct(v); err != nil {
			return nil, fmt.Errorf("view %q: %w", v.Key, err)
		}
		if v.Key == domain.NoViewAppliedKey {
			return nil, fmt.Errorf("view key %q is reserved", v.Key)
		}
		if _, dup := vs.byKey[v.Key]; dup {
			return nil, fmt.Errorf("duplicate view key %q", v.Key)
		}
		if v.IsDefault {
			defaults++
		}
		vs.byKey[v.Key] = v
	}
	if defaults > 1 {
		return nil, fmt.Errorf("%d views are marked default", defaults)
	}
	return vs, nil
}

// Views returns the views in declaration order.
func (vs *ViewSet) Views() []domain.View {
	return vs.views
}

// DefaultKey is the key of the default view, or NoViewAppliedKey.
func (vs *ViewSet) DefaultKey() string {
	if v, ok := lo.Find(vs.views, func(v domain.View) bool { return v.IsDefault }); ok {
		return v.Key
	}
	return domain.NoViewAppliedKey
}

// Resolve expands a view key into the full view merged over BaseView.
// Unknown keys and NoViewAppliedKey resolve to BaseView itself.
func (vs *ViewSet) Resolve(key string) domain.View {
	v, ok := vs.byKey[key]
	if !ok {
		base := BaseViewCopy()
		base.Key = domain.NoViewAppliedKey
		return base
	}
	return MergeView(v)
}

// ViewToServer is the view key, or "" when no view is applied.
func (vs *ViewSet) ViewToServer(v domain.View) string {
	if _, ok := vs.byKey[v.Key]; !ok {
		return ""
	}
	return v.Key
}

// ViewFromServer maps a server key to a draft key.
func (vs *ViewSet) ViewFromServer(key string) string {
	if _, ok := vs.byKey[key]; !ok {
		return domain.NoViewAppliedKey
	}
	return key
}

// BaseViewCopy returns BaseView with fresh slices and maps.
func BaseViewCopy() domain.View {
	v := domain.BaseView
	v.SortBy = []domain.ServerSortRule{}
	v.Columns = map[string]domain.ColumnOverride{}
	return v
}

// MergeView fills the fields v leaves unset from BaseView.
func MergeView(v domain.View) domain.View {
	base := BaseViewCopy()
	out := v
	if out.Label == "" {
		out.Label = base.Label
	}
	if out.SortBy == nil {
		out.SortBy = base.SortBy
	}
	if out.Columns == nil {
		out.Columns = base.Columns
	} else {
		out.Columns = maps.Clone(v.Columns)
	}
	return out
}
