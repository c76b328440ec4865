package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"greendrake/dunning/internal/models"
)

func TestBase_GenIDIfEmpty(t *testing.T) {
	var event models.DunningEvent
	event.GenIDIfEmpty()
	assert.NotEmpty(t, event.ID)

	kept := models.DunningEvent{Base: models.Base{ID: "evt-1"}}
	kept.GenIDIfEmpty()
	assert.Equal(t, "evt-1", kept.ID)
}
