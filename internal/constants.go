package internal

const (
	COOKIE_ACCESS_TOKEN_NAME = "mm_access_token"
	COOKIE_REDIRECT_NAME     = "mm_redirect_to"
)
