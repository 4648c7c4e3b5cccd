package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/hugolhafner/go-offsets/logger"
	"github.com/hugolhafner/go-offsets/otel"
	"go.opentelemetry.io/otel/metric"
)

var _ TokenProvider = (*MSKTokenProvider)(nil)

// SignFunc produces a signed MSK IAM token and its expiry in unix millis
type SignFunc func(ctx context.Context, region string) (string, int64, error)

type MSKConfig struct {
	Region    string
	Sign      SignFunc
	Logger    logger.Logger
	Telemetry *otel.Telemetry
}

type MSKOption func(*MSKConfig)

func WithLogger(l logger.Logger) MSKOption {
	return func(c *MSKConfig) {
		c.Logger = l
	}
}

func WithTelemetry(t *otel.Telemetry) MSKOption {
	return func(c *MSKConfig) {
		if t != nil {
			c.Telemetry = t
		}
	}
}

// WithSignFunc replaces the AWS signer
func WithSignFunc(f SignFunc) MSKOption {
	return func(c *MSKConfig) {
		if f != nil {
			c.Sign = f
		}
	}
}

// MSKTokenProvider mints Amazon MSK IAM tokens from the default AWS
// credential chain of the configured region.
type MSKTokenProvider struct {
	config MSKConfig
	logger logger.Logger
}

func NewMSKTokenProvider(region string, opts ...MSKOption) *MSKTokenProvider {
	cfg := MSKConfig{
		Region:    region,
		Sign:      signWithDefaultCredentials,
		Logger:    logger.NewNoopLogger(),
		Telemetry: otel.Noop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &MSKTokenProvider{
		config: cfg,
		logger: cfg.Logger.With("component", "auth", "region", region),
	}
}

// Mint never panics: failures are logged and returned as *AuthError, which
// matches ErrNoToken. The caller decides whether that aborts anything.
func (p *MSKTokenProvider) Mint(ctx context.Context) (Token, error) {
	value, expiryMs, err := p.config.Sign(ctx, p.config.Region)
	if err == nil && value == "" {
		err = errors.New("signer returned an empty token")
	}

	if err != nil {
		p.logger.Error("Failed to generate token", "error", err)
		p.config.Telemetry.TokensMinted.Add(
			ctx, 1, metric.WithAttributes(
				otel.AttrMintStatus.String(otel.StatusFailed),
				otel.AttrAuthRegion.String(p.config.Region),
			),
		)
		return Token{}, NewAuthError(p.config.Region, err)
	}

	p.config.Telemetry.TokensMinted.Add(
		ctx, 1, metric.WithAttributes(
			otel.AttrMintStatus.String(otel.StatusSuccess),
			otel.AttrAuthRegion.String(p.config.Region),
		),
	)

	token := Token{Value: value}
	if expiryMs > 0 {
		token.ExpiresAt = time.UnixMilli(expiryMs)
	}

	p.logger.Debug("Generated token", "expires_at", token.ExpiresAt)

	return token, nil
}

func signWithDefaultCredentials(ctx context.Context, region string) (string, int64, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return "", 0, fmt.Errorf("load aws config: %w", err)
	}

	return signer.GenerateAuthTokenFromCredentialsProvider(ctx, region, cfg.Credentials)
}
