package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ileri/atelier/site"
)

func settings(kv map[site.Field]string) site.Settings {
	var s site.Settings
	for k, v := range kv {
		s.Set(k, v)
	}
	return s
}

func TestReduceFieldPrecedence(t *testing.T) {
	base := site.Configuration{HeroTitle: "Default", AboutText: "Default about"}

	tests := []struct {
		name   string
		events []Event
		hero   string
		about  string
		origin Origin
	}{
		{"defaults", nil, "Default", "Default about", OriginDefault},
		{
			"legacy fills",
			[]Event{LegacyEvent{Config: &site.Configuration{HeroTitle: "Old"}}},
			"Old", "Default about", OriginLegacy,
		},
		{
			"settings beat legacy",
			[]Event{
				LegacyEvent{Config: &site.Configuration{HeroTitle: "Old"}},
				SettingsEvent{Settings: settings(map[site.Field]string{site.FieldHeroTitle: "New"})},
			},
			"New", "Default about", OriginPrimary,
		},
		{
			"legacy after settings is ignored",
			[]Event{
				SettingsEvent{Settings: settings(map[site.Field]string{site.FieldHeroTitle: "New"})},
				LegacyEvent{Config: &site.Configuration{HeroTitle: "Old", AboutText: "Legacy about"}},
			},
			"New", "Legacy about", OriginPrimary,
		},
		{
			"empty settings keep value",
			[]Event{
				SettingsEvent{Settings: settings(map[site.Field]string{site.FieldHeroTitle: "New"})},
				SettingsEvent{},
			},
			"New", "Default about", OriginPrimary,
		},
		{
			"nil legacy is a no-op",
			[]Event{LegacyEvent{}},
			"Default", "Default about", OriginDefault,
		},
		{
			"snapshot behaves as legacy",
			[]Event{
				SnapshotEvent{Config: site.Configuration{HeroTitle: "Cached"}},
				LegacyEvent{Config: &site.Configuration{HeroTitle: "Newer legacy"}},
			},
			"Newer legacy", "Default about", OriginLegacy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(base)
			for _, e := range tt.events {
				s = Reduce(s, e)
			}
			assert.Equal(t, tt.hero, s.Config.HeroTitle)
			assert.Equal(t, tt.about, s.Config.AboutText)
			assert.Equal(t, tt.origin, s.FieldOrigin(site.FieldHeroTitle))
		})
	}
}

func TestReduceCollections(t *testing.T) {
	a := site.Service{ID: 1, Title: "A"}
	b := site.Service{ID: 2, Title: "B"}
	legacy := site.Service{ID: 3, Title: "Legacy"}

	s := NewState(site.Configuration{Services: []site.Service{{ID: 9, Title: "Default"}}})
	s = Reduce(s, LegacyEvent{Config: &site.Configuration{Services: []site.Service{legacy}}})
	assert.Equal(t, []site.Service{legacy}, s.Config.Services)
	assert.Equal(t, OriginLegacy, s.CollectionOrigin(site.Services))

	s = Reduce(s, ServicesEvent{Items: []site.Service{a, b}})
	assert.Equal(t, []site.Service{a, b}, s.Config.Services)

	s = Reduce(s, ServicesEvent{Items: []site.Service{}})
	assert.Equal(t, []site.Service{a, b}, s.Config.Services, "empty snapshot means not loaded")

	s = Reduce(s, LegacyEvent{Config: &site.Configuration{Services: []site.Service{legacy}}})
	assert.Equal(t, []site.Service{a, b}, s.Config.Services, "legacy never replaces a watched collection")
}

func TestReducePrivileged(t *testing.T) {
	s := NewState(site.Configuration{})
	s = Reduce(s, OrdersEvent{Items: []site.Order{{ID: 1}}})
	s = Reduce(s, AppointmentsEvent{Items: []site.Appointment{{ID: 2}}})
	assert.Len(t, s.Config.Orders, 1)

	s = Reduce(s, OrdersEvent{Items: []site.Order{}})
	assert.Empty(t, s.Config.Orders)

	s = Reduce(s, PrivilegedReset{})
	assert.Nil(t, s.Config.Orders)
	assert.Nil(t, s.Config.Appointments)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before := NewState(site.Configuration{HeroTitle: "A"})
	after := Reduce(before, SettingsEvent{Settings: settings(map[site.Field]string{site.FieldHeroTitle: "B"})})
	assert.Equal(t, "A", before.Config.HeroTitle)
	assert.Equal(t, OriginDefault, before.FieldOrigin(site.FieldHeroTitle))
	assert.Equal(t, "B", after.Config.HeroTitle)
}

func TestReduceTitleAndPayment(t *testing.T) {
	s := NewState(site.Configuration{})
	s = Reduce(s, TitleEvent{Value: "Shenay Beauty"})
	s = Reduce(s, TitleEvent{})
	assert.Equal(t, "Shenay Beauty", s.Config.SiteTitle)

	s = Reduce(s, LegacyEvent{Config: &site.Configuration{Payment: site.Payment{IBAN: "DE00"}}})
	assert.Equal(t, "DE00", s.Config.Payment.IBAN)
	s = Reduce(s, LegacyEvent{Config: &site.Configuration{}})
	assert.Equal(t, "DE00", s.Config.Payment.IBAN)
}

func TestReduceUnknownEventPanics(t *testing.T) {
	assert.Panics(t, func() { Reduce(NewState(site.Configuration{}), nil) })
}
