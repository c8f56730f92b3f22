package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func paths(items []Item) []string {
	res := make([]string, 0, len(items))
	for _, it := range items {
		res = append(res, it.Path)
	}
	return res
}

func TestMenu_AdminEntries(t *testing.T) {
	tests := []struct {
		name    string
		isAdmin bool
		want    []string
	}{
		{
			name:    "admin sees everything",
			isAdmin: true,
			want:    []string{"/dashboard", "/messages", "/categories", "/contacts", "/users", "/payments"},
		},
		{
			name: "regular user",
			want: []string{"/dashboard", "/messages", "/categories", "/contacts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paths(Menu(tt.isAdmin, "/dashboard")))
		})
	}
}

func TestMenu_Active(t *testing.T) {
	items := Menu(true, "/contacts")

	var active []string
	for _, it := range items {
		if it.Active {
			active = append(active, it.Label)
		}
	}
	assert.Equal(t, []string{"Contatos"}, active)

	for _, it := range Menu(false, "/contacts/extra") {
		assert.False(t, it.Active)
	}
}

func TestAdminOnly(t *testing.T) {
	assert.True(t, AdminOnly("/users"))
	assert.True(t, AdminOnly("/payments"))
	assert.False(t, AdminOnly("/contacts"))
	assert.False(t, AdminOnly("/unknown"))
}
