package verification

import (
	"strings"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// ConfigFor derives the machine configuration from a field declaration.
// Fields that are neither VERIFIED_INPUT nor API_VERIFICATION report false.
func ConfigFor(f *schema.Field) (Config, bool) {
	if f == nil {
		return Config{}, false
	}
	switch f.Type {
	case schema.FieldTypeAPIVerification:
		api := f.APIVerification
		if api == nil {
			return Config{Mode: ModeAPI}, true
		}
		return Config{
			Mode:           ModeAPI,
			API:            strings.TrimSpace(api.Endpoint) != "",
			SuccessMessage: api.Messages.Success,
			FailureMessage: api.Messages.Failure,
			Dialog:         api.ShowDialog,
		}, true
	case schema.FieldTypeVerifiedInput:
		vi := f.VerifiedInput
		if vi == nil {
			return Config{Mode: ModeOTP}, true
		}
		cfg := Config{
			Mode:           ModeOTP,
			SuccessMessage: vi.Messages.Success,
			FailureMessage: vi.Messages.Failure,
			Dialog:         vi.ShowDialog,
		}
		if otp := vi.OTP; otp != nil {
			cfg.Consent = otp.Consent != nil
			cfg.SendCode = otp.SendCode.Configured()
			cfg.VerifyCode = otp.VerifyCode.Configured()
		}
		if strings.EqualFold(vi.Mode, "API") && vi.API.Configured() {
			cfg.Mode = ModeAPI
			cfg.API = true
		}
		return cfg, true
	default:
		return Config{}, false
	}
}
