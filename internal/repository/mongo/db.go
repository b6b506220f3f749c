package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string, opTimeout time.Duration) (*mongo.Client, error) {
	// Set context with timeout for the connection attempt
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	// Every operation gets a server-side bound even when a caller forgets a deadline.
	clientOptions := options.Client().ApplyURI(uri)
	if opTimeout > 0 {
		clientOptions.SetTimeout(opTimeout)
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary node to verify the connection.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	err = client.Ping(pingCtx, readpref.Primary())
	if err != nil {
		// If ping fails, disconnect the client before returning the error
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates every index the repositories rely on. The appointment
// slot index is what enforces booking uniqueness, so its failure is returned;
// the remaining indexes only affect query speed and are logged.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger zerolog.Logger) error {
	if err := EnsureAppointmentIndexes(ctx, db.Collection(appointmentCollectionName)); err != nil {
		return fmt.Errorf("appointment indexes: %w", err)
	}
	if err := EnsureAvailabilityRuleIndexes(ctx, db.Collection(availabilityRuleCollectionName)); err != nil {
		return fmt.Errorf("availability rule indexes: %w", err)
	}

	optional := map[string]func(context.Context, *mongo.Collection) error{
		userCollectionName:              EnsureUserIndexes,
		calendarCollectionName:          EnsureCalendarIndexes,
		planTemplateCollectionName:      EnsurePlanTemplateIndexes,
		scheduledInstanceCollectionName: EnsureScheduledInstanceIndexes,
		sendCounterCollectionName:       EnsureSendCounterIndexes,
	}
	for name, ensure := range optional {
		if err := ensure(ctx, db.Collection(name)); err != nil {
			logger.Warn().Err(err).Str("collection", name).Msg("failed to create indexes")
		}
	}
	return nil
}
