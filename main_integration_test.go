package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/dunning/internal/channels/mock"
	"greendrake/dunning/internal/db"
	"greendrake/dunning/internal/dunning"
	"greendrake/dunning/internal/models"
)

const integrationDbName = "dunning_integration_test"

// buildApp compiles the binary into a temp dir.
func buildApp(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "dunning_test_app")
	out, err := exec.Command("go", "build", "-o", bin, ".").CombinedOutput()
	require.NoError(t, err, "build failed: %s", out)
	return bin
}

func seed(t *testing.T, database *mongo.Database, now time.Time) {
	t.Helper()
	ctx := context.Background()
	for _, c := range []string{db.InvoicesCollection, db.CustomersCollection, db.OrganizationsCollection, db.DunningEventsCollection, db.ProcessedEventsCollection} {
		_ = database.Collection(c).Drop(ctx)
	}

	_, err := database.Collection(db.OrganizationsCollection).InsertOne(ctx, models.Organization{
		Base:                   models.Base{ID: "org-it"},
		Name:                   "Installatiebedrijf Jansen",
		WhatsAppBusinessNumber: "0201234567",
	})
	require.NoError(t, err)
	_, err = database.Collection(db.CustomersCollection).InsertOne(ctx, models.Customer{
		Base:  models.Base{ID: "cust-it"},
		OrgID: "org-it",
		Name:  "Piet de Boer",
		Email: "piet@example.nl",
		Phone: "06 12345678",
	})
	require.NoError(t, err)
	_, err = database.Collection(db.InvoicesCollection).InsertOne(ctx, models.Invoice{
		Base:          models.Base{ID: "inv-it"},
		OrgID:         "org-it",
		CustomerID:    "cust-it",
		InvoiceNumber: "F-IT-1",
		TotalCents:    48250,
		Status:        models.InvoiceStatusSent,
		IssuedAt:      now.AddDate(0, 0, -40),
		DueAt:         now.AddDate(0, 0, -10),
	})
	require.NoError(t, err)
}

func TestOnceMode_DryRun(t *testing.T) {
	_ = godotenv.Load()
	uri := os.Getenv("MONGO_URI_TEST")
	if uri == "" {
		t.Skip("MONGO_URI_TEST not set, skipping integration test")
	}
	amsterdam, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	now := time.Now()
	if h := now.In(amsterdam).Hour(); h >= 23 {
		t.Skip("outside the widest send window")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())
	database := client.Database(integrationDbName)
	seed(t, database, now)

	mr := miniredis.RunT(t)
	bin := buildApp(t)

	cmd := exec.Command(bin, "-m", "once", "-dry-run")
	cmd.Env = append(os.Environ(),
		"MONGO_URI="+uri,
		"MONGO_DB_NAME="+integrationDbName,
		"REDIS_ADDR="+mr.Addr(),
		"JWT_SECRET=integration",
		"MOCK_SERVICES=true",
		"DUNNING_WINDOW_START_HOUR=0",
		"DUNNING_WINDOW_END_HOUR=23",
		"LOG_LEVEL=warn",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	require.NoError(t, cmd.Run(), "app failed: %s", stderr.String())

	var res dunning.RunResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res), "stdout: %s", stdout.String())
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 1, res.Sent)
	assert.Empty(t, res.Errors)

	// Dry run: no provider call, no bookkeeping, no audit.
	assert.False(t, mr.Exists(mock.Key("whatsapp", "+31612345678")))
	var inv models.Invoice
	require.NoError(t, database.Collection(db.InvoicesCollection).FindOne(ctx, bson.M{"_id": "inv-it"}).Decode(&inv))
	assert.Equal(t, 0, inv.ReminderCount)
	count, err := database.Collection(db.DunningEventsCollection).CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Zero(t, count)
}
