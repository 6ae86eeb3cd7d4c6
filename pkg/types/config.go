package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Cognito Auth
	CognitoUserPoolID string `envconfig:"COGNITO_USER_POOL_ID"`
	CognitoClientID   string `envconfig:"COGNITO_CLIENT_ID"`
	CognitoIssuerURL  string `envconfig:"COGNITO_ISSUER_URL"`

	// S3 media storage
	MediaBucketName string `envconfig:"MEDIA_BUCKET_NAME" default:"movemarket-request-media"`
	MediaBucketURL  string `envconfig:"MEDIA_BUCKET_URL"`

	// Stripe (test mode) for lead unlock charges
	StripeSecretKey      string `envconfig:"STRIPE_SECRET_KEY"`
	LeadUnlockPriceCents int64  `envconfig:"LEAD_UNLOCK_PRICE_CENTS" default:"2900"`
	LeadUnlockCurrency   string `envconfig:"LEAD_UNLOCK_CURRENCY" default:"ron"`

	// Transactional mail
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     uint   `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	MailFrom     string `envconfig:"MAIL_FROM" default:"no-reply@movemarket.app"`
	UploadURL    string `envconfig:"UPLOAD_URL" default:"https://movemarket.app/upload"`

	// Cookie encryption keys (base64 encoded)
	// openssl rand -base64 32
	// to generate values
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes
}
