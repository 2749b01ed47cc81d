package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/pharmadir/internal/model"
)

func pharmacy(id, name, region string, at time.Time) model.Pharmacy {
	return model.Pharmacy{ExternalID: id, Name: name, Region: region, LastUpdated: at}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "pharmacie élite", Fold("PHARMACIE ÉLITE"))
	assert.Equal(t, Fold("Béjaïa"), Fold("BÉJAÏA"))
	assert.Equal(t, "", Fold(""))
}

func TestDedupe_LastOccurrenceWins(t *testing.T) {
	now := time.Now()
	batch := []model.Pharmacy{
		pharmacy("node/1", "First", "Alger", now),
		pharmacy("node/2", "Other", "Alger", now),
		pharmacy("node/1", "Second", "Oran", now),
	}

	got := Dedupe(batch)
	assert.Len(t, got, 2)
	assert.Equal(t, "node/2", got[0].ExternalID)
	assert.Equal(t, "Second", got[1].Name)
	assert.Equal(t, "Oran", got[1].Region)
}

func TestDedupe_NoDuplicatesReturnsInput(t *testing.T) {
	batch := []model.Pharmacy{pharmacy("node/1", "A", "Alger", time.Now())}
	got := Dedupe(batch)
	assert.Equal(t, batch, got)
}

func TestSearchLimit(t *testing.T) {
	assert.Equal(t, defaultSearchLimit, searchLimit(0))
	assert.Equal(t, defaultSearchLimit, searchLimit(-4))
	assert.Equal(t, 12, searchLimit(12))
}
