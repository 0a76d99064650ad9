package schema

// FieldType enumerates the input kinds a screen can declare. Unknown types
// decode as-is so newer backends do not break older clients.
type FieldType string

const (
	FieldTypeText            FieldType = "TEXT"
	FieldTypeTextArea        FieldType = "TEXTAREA"
	FieldTypeNumber          FieldType = "NUMBER"
	FieldTypeDate            FieldType = "DATE"
	FieldTypeDropdown        FieldType = "DROPDOWN"
	FieldTypeRadio           FieldType = "RADIO"
	FieldTypeVerifiedInput   FieldType = "VERIFIED_INPUT"
	FieldTypeAPIVerification FieldType = "API_VERIFICATION"
	FieldTypeBoolean         FieldType = "BOOLEAN"
)

// DataSourceType identifies how a field's option list is resolved.
type DataSourceType string

const (
	DataSourceInline     DataSourceType = "INLINE"
	DataSourceStaticJSON DataSourceType = "STATIC_JSON"
	DataSourceMaster     DataSourceType = "MASTER"
	DataSourceMasterData DataSourceType = "MASTER_DATA"
	DataSourceAPI        DataSourceType = "API"
)

const (
	SelectionSingle   = "SINGLE"
	SelectionMultiple = "MULTIPLE"
)

const (
	TriggerOnComplete = "ON_COMPLETE"
	TriggerOnBlur     = "ON_BLUR"
)

const (
	SubmitAllFieldsValid = "ALL_FIELDS_VALID"
	SubmitFieldEquals    = "FIELD_EQUALS"
)

const (
	RuleRequiresVerification = "REQUIRES_VERIFICATION"
)

// Screen is the in-memory representation of one backend screen
// configuration. It is immutable once decoded; the engine never mutates it.
type Screen struct {
	ScreenID     string        `json:"screenId" validate:"required"`
	FlowID       string        `json:"flowId,omitempty"`
	Title        string        `json:"title"`
	Version      int           `json:"version,omitempty"`
	Status       string        `json:"status,omitempty"`
	Scope        *Scope        `json:"scope,omitempty"`
	Layout       Layout        `json:"layout"`
	HiddenFields []HiddenField `json:"hiddenFields,omitempty" validate:"dive"`
	Sections     []Section     `json:"sections" validate:"dive"`
	Actions      []Action      `json:"actions,omitempty" validate:"dive"`
	Modals       []Modal       `json:"modals,omitempty" validate:"dive"`
	Validations  []FormRule    `json:"validations,omitempty" validate:"dive"`
}

// Scope carries the flow routing codes a screen was resolved for.
type Scope struct {
	Type        string `json:"type,omitempty"`
	ProductCode string `json:"productCode,omitempty"`
	PartnerCode string `json:"partnerCode,omitempty"`
	BranchCode  string `json:"branchCode,omitempty"`
}

// Layout holds screen-level presentation hints and the submit gating rules.
type Layout struct {
	Type                string            `json:"type,omitempty"`
	SubmitButtonText    string            `json:"submitButtonText"`
	StickyFooter        bool              `json:"stickyFooter"`
	AllowBackNavigation bool              `json:"allowBackNavigation"`
	EnableSubmitWhen    []SubmitCondition `json:"enableSubmitWhen,omitempty"`
}

// SubmitCondition gates the submit action. Type is ALL_FIELDS_VALID or
// FIELD_EQUALS; other types pass.
type SubmitCondition struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`
}

// HiddenField is part of the form data but never rendered.
type HiddenField struct {
	ID           string `json:"id" validate:"required"`
	Type         string `json:"type"`
	DefaultValue any    `json:"defaultValue,omitempty"`
}

// Section groups fields and nested sub-sections. Repeatable sections hold
// MinInstances..MaxInstances instances; an unset MaxInstances is unbounded.
type Section struct {
	ID               string        `json:"id" validate:"required"`
	Title            string        `json:"title"`
	Collapsible      bool          `json:"collapsible"`
	Expanded         bool          `json:"expanded"`
	Repeatable       bool          `json:"repeatable"`
	MinInstances     int           `json:"minInstances" validate:"gte=0"`
	MaxInstances     Int           `json:"maxInstances,omitzero"`
	AddButtonText    string        `json:"addButtonText,omitempty"`
	RemoveButtonText string        `json:"removeButtonText,omitempty"`
	InstanceLabel    string        `json:"instanceLabel,omitempty"`
	Order            int           `json:"order,omitempty"`
	SubSectionOf     string        `json:"subSectionOf,omitempty"`
	ValidationRules  []SectionRule `json:"validationRules,omitempty"`
	Fields           []Field       `json:"fields" validate:"dive"`
	SubSections      []Section     `json:"subSections,omitempty" validate:"dive"`
}

// SectionRule is a section scoped validation hint. The engine keeps them for
// callers; only form-level rules are enforced client side.
type SectionRule struct {
	Type    string `json:"type"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// Field describes one input. IDs are unique within a section only; inside a
// repeatable section the composite Key disambiguates instances.
type Field struct {
	ID              string                 `json:"id" validate:"required"`
	Key             string                 `json:"_key,omitempty"`
	Type            FieldType              `json:"type" validate:"required"`
	Label           string                 `json:"label"`
	Placeholder     string                 `json:"placeholder,omitempty"`
	Keyboard        string                 `json:"keyboard,omitempty"`
	Required        bool                   `json:"required"`
	ReadOnly        bool                   `json:"readOnly,omitempty"`
	Order           int                    `json:"order,omitempty"`
	Value           any                    `json:"value,omitempty"`
	MaxLength       Int                    `json:"maxLength,omitzero"`
	Min             Int                    `json:"min,omitzero"`
	Max             Int                    `json:"max,omitzero"`
	SelectionMode   string                 `json:"selectionMode,omitempty"`
	MinSelections   Int                    `json:"minSelections,omitzero"`
	MaxSelections   Int                    `json:"maxSelections,omitzero"`
	DataSource      *DataSource            `json:"dataSource,omitempty"`
	EnabledWhen     *Condition             `json:"enabledWhen,omitempty"`
	VisibleWhen     *Condition             `json:"visibleWhen,omitempty"`
	RequiredWhen    *Condition             `json:"requiredWhen,omitempty"`
	Validation      *Validation            `json:"validation,omitempty"`
	Verification    *Verification          `json:"verification,omitempty"`
	VerifiedInput   *VerifiedInputConfig   `json:"verifiedInputConfig,omitempty"`
	APIVerification *APIVerificationConfig `json:"apiVerificationConfig,omitempty"`
}

// Multiple reports whether the field stores a comma separated selection.
func (f Field) Multiple() bool {
	return f.Type == FieldTypeDropdown && f.SelectionMode == SelectionMultiple
}

// Verifiable reports whether value edits must reset a verification flag.
func (f Field) Verifiable() bool {
	return f.Type == FieldTypeVerifiedInput || f.Type == FieldTypeAPIVerification
}

// StatusField returns the legacy verification status field, if any.
func (f Field) StatusField() string {
	if f.Verification == nil {
		return ""
	}
	return f.Verification.StatusField
}

// DataSource describes where option lists come from.
type DataSource struct {
	Type      DataSourceType `json:"type"`
	Values    []string       `json:"values,omitempty"`
	Key       string         `json:"key,omitempty"`
	Endpoint  string         `json:"endpoint,omitempty"`
	Method    string         `json:"method,omitempty"`
	DependsOn string         `json:"dependsOn,omitempty"`
	ParamKey  string         `json:"paramKey,omitempty"`
}

// IsMaster reports whether options come from the master-data collaborator.
func (d DataSource) IsMaster() bool {
	return d.Type == DataSourceMaster || d.Type == DataSourceMasterData
}

// IsInline reports whether options are literal values from the schema.
func (d DataSource) IsInline() bool {
	return d.Type == DataSourceInline || d.Type == DataSourceStaticJSON
}

// Validation is a regex rule with its message.
type Validation struct {
	Regex        string `json:"regex"`
	ErrorMessage string `json:"errorMessage"`
}

// Verification is the legacy modal driven verification block.
type Verification struct {
	Enabled        bool   `json:"enabled"`
	Type           string `json:"type"`
	Trigger        string `json:"trigger"`
	ModalID        string `json:"modalId"`
	StatusField    string `json:"statusField"`
	ShowStatusIcon bool   `json:"showStatusIcon"`
}

// Endpoint is a configuration supplied call target.
type Endpoint struct {
	URL    string `json:"endpoint"`
	Method string `json:"method"`
}

// Configured reports whether the endpoint can be called.
func (e *Endpoint) Configured() bool {
	return e != nil && e.URL != ""
}

// VerifiedInputConfig drives the consent + OTP sub-flow.
type VerifiedInputConfig struct {
	Input        VerifiedInputInput `json:"input"`
	Mode         string             `json:"mode,omitempty"`
	Messages     Messages           `json:"messages,omitempty"`
	ShowDialog   bool               `json:"showDialog,omitempty"`
	OTP          *OTPConfig         `json:"otp,omitempty"`
	API          *Endpoint          `json:"api,omitempty"`
	SuccessMatch *SuccessCondition  `json:"successCondition,omitempty"`
}

// VerifiedInputInput carries input hints for verified inputs.
type VerifiedInputInput struct {
	DataType  string `json:"dataType,omitempty"`
	Keyboard  string `json:"keyboard,omitempty"`
	MaxLength Int    `json:"maxLength,omitzero"`
	Min       Int    `json:"min,omitzero"`
	Max       Int    `json:"max,omitzero"`
}

// OTPConfig configures the one-time code challenge.
type OTPConfig struct {
	Channel               string    `json:"channel,omitempty"`
	Length                Int       `json:"otpLength,omitzero"`
	ResendIntervalSeconds Int       `json:"resendIntervalSeconds,omitzero"`
	Consent               *Consent  `json:"consent,omitempty"`
	SendCode              *Endpoint `json:"sendOtp,omitempty"`
	VerifyCode            *Endpoint `json:"verifyOtp,omitempty"`
}

// Consent is the template shown before a code is sent.
type Consent struct {
	Title              string `json:"title,omitempty"`
	SubTitle           string `json:"subTitle,omitempty"`
	Message            string `json:"message,omitempty"`
	PositiveButtonText string `json:"positiveButtonText,omitempty"`
	NegativeButtonText string `json:"negativeButtonText,omitempty"`
}

// Messages are schema declared success/failure templates.
type Messages struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
}

// SuccessCondition matches a verification response body field.
type SuccessCondition struct {
	Field  string `json:"field"`
	Equals any    `json:"equals"`
}

// APIVerificationConfig drives a direct verification call.
type APIVerificationConfig struct {
	Endpoint       string            `json:"endpoint"`
	Method         string            `json:"method,omitempty"`
	RequestMapping string            `json:"requestMapping,omitempty"`
	SuccessMatch   *SuccessCondition `json:"successCondition,omitempty"`
	Messages       Messages          `json:"messages,omitempty"`
	ShowDialog     bool              `json:"showDialog,omitempty"`
}

// Action is the submit target declared by a screen.
type Action struct {
	ID             string `json:"id,omitempty"`
	Label          string `json:"label,omitempty"`
	API            string `json:"api"`
	Method         string `json:"method"`
	NextScreen     string `json:"nextScreen,omitempty"`
	SuccessMessage string `json:"successMessage,omitempty"`
	FailureMessage string `json:"failureMessage,omitempty"`
}

// Modal is a legacy verification dialog.
type Modal struct {
	ModalID     string        `json:"modalId" validate:"required"`
	Type        string        `json:"type"`
	Title       string        `json:"title,omitempty"`
	Icon        string        `json:"icon,omitempty"`
	CodeLength  int           `json:"codeLength,omitempty"`
	ConsentText string        `json:"consentText,omitempty"`
	Actions     []ModalAction `json:"actions,omitempty"`
}

// ModalAction is a button inside a legacy modal.
type ModalAction struct {
	Type      string     `json:"type"`
	Label     string     `json:"label,omitempty"`
	API       string     `json:"api"`
	OnSuccess *OnSuccess `json:"onSuccess,omitempty"`
}

// OnSuccess updates a hidden/status field when a modal action succeeds.
type OnSuccess struct {
	UpdateField string `json:"updateField"`
	Value       any    `json:"value"`
	CloseModal  bool   `json:"closeModal"`
}

// FormRule is a form-level rule. Only rules whose ExecutionTarget marks
// client side execution run in the engine.
type FormRule struct {
	ID              string `json:"id,omitempty"`
	FieldID         string `json:"fieldId,omitempty"`
	Type            string `json:"type" validate:"required"`
	Message         string `json:"message,omitempty"`
	Pattern         string `json:"pattern,omitempty"`
	ExecutionTarget string `json:"executionTarget,omitempty"`
}

// ClientSide reports whether the rule is meant to run in the client.
func (r FormRule) ClientSide() bool {
	switch upper(r.ExecutionTarget) {
	case "FRONTEND", "CLIENT", "BOTH":
		return true
	default:
		return false
	}
}
