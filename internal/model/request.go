package model

type LoginRequest struct {
	EmailAddress   string `json:"email_address" validate:"required,email,max=254"`
	RawPassword    string `json:"raw_password" validate:"required,max=1024"`
	RecaptchaToken string `json:"recaptcha_token"`
}

type RegisterRequest struct {
	RecaptchaToken string `json:"recaptcha_token"`

	EmailAddress string `json:"email_address" validate:"required,email,max=254"`
	RawPassword  string `json:"raw_password" validate:"required,min=8,max=1024"`

	OnBehalfOf                      string `json:"on_behalf_of"`
	DataProcessingConsent           string `json:"data_processing_consent"`
	FullName                        string `json:"full_name" validate:"required,max=200"`
	TelephoneNumber                 string `json:"telephone_number" validate:"max=50"`
	FullAddress                     string `json:"full_address" validate:"max=500"`
	Gender                          string `json:"gender" validate:"max=50"`
	EthnicGroup                     string `json:"ethnic_group" validate:"max=100"`
	DateOfBirth                     string `json:"date_of_birth" validate:"max=50"`
	HowDidYouFindOutAboutOurService string `json:"how_did_you_find_out_about_our_service" validate:"max=500"`
	CaseDescription                 string `json:"case_description" validate:"max=10000"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UpdateUserRequest struct {
	IsAdmin    *bool `json:"is_admin"`
	AllowLogin *bool `json:"allow_login"`
}

type CaseQuery struct {
	Page       int
	PageSize   int
	AssignedTo string
}
