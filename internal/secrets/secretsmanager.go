package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/phaserai/schema-migrate/internal/database"
)

// SecretValueGetter is the subset of the Secrets Manager client the
// resolver needs; satisfied by *secretsmanager.Client.
type SecretValueGetter interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager resolves credentials from an AWS Secrets Manager
// secret holding the standard RDS credential JSON.
type SecretsManager struct {
	client       SecretValueGetter
	secretID     string
	hostFallback string // used when the secret omits the host
}

// NewSecretsManager builds a resolver using the default AWS config
// chain. hostFallback (typically the DB endpoint from the deployment
// environment) fills in the host when the secret omits it.
func NewSecretsManager(ctx context.Context, secretID, hostFallback string) (*SecretsManager, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SecretsManager{
		client:       secretsmanager.NewFromConfig(cfg),
		secretID:     secretID,
		hostFallback: hostFallback,
	}, nil
}

// NewSecretsManagerFromEnv builds a resolver from the SECRET_ARN and
// DB_ENDPOINT environment variables, the shape a deployment hook runs
// under.
func NewSecretsManagerFromEnv(ctx context.Context) (*SecretsManager, error) {
	secretID := os.Getenv("SECRET_ARN")
	if secretID == "" {
		return nil, fmt.Errorf("%w: SECRET_ARN not set", ErrIncompleteCredentials)
	}

	return NewSecretsManager(ctx, secretID, os.Getenv("DB_ENDPOINT"))
}

// rdsSecret is the credential JSON stored by RDS-managed secrets.
type rdsSecret struct {
	Host     string      `json:"host"`
	Port     json.Number `json:"port"`
	DBName   string      `json:"dbname"`
	Database string      `json:"database"` // some secrets use this key instead of dbname
	Username string      `json:"username"`
	Password string      `json:"password"`
}

// Resolve fetches and decodes the secret.
func (r *SecretsManager) Resolve(ctx context.Context) (database.Credentials, error) {
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(r.secretID),
	})
	if err != nil {
		return database.Credentials{}, fmt.Errorf("fetching secret %s: %w", r.secretID, err)
	}

	if out.SecretString == nil {
		return database.Credentials{}, fmt.Errorf("secret %s: %w: no string payload", r.secretID, ErrIncompleteCredentials)
	}

	var secret rdsSecret
	if err := json.Unmarshal([]byte(*out.SecretString), &secret); err != nil {
		return database.Credentials{}, fmt.Errorf("decoding secret %s: %w", r.secretID, err)
	}

	creds := database.Credentials{
		Host:     secret.Host,
		Port:     defaultPort,
		Database: secret.DBName,
		Username: secret.Username,
		Password: secret.Password,
		SSLMode:  "require",
	}

	if creds.Host == "" {
		creds.Host = r.hostFallback
	}

	if creds.Database == "" {
		creds.Database = secret.Database
	}

	if secret.Port != "" {
		port, err := secret.Port.Int64()
		if err != nil {
			return database.Credentials{}, fmt.Errorf("secret %s: parsing port %q: %w", r.secretID, secret.Port, err)
		}

		creds.Port = int(port)
	}

	if err := validate(creds); err != nil {
		return database.Credentials{}, fmt.Errorf("secret %s: %w", r.secretID, err)
	}

	return creds, nil
}
