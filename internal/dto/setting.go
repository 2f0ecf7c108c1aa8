package dto

// SettingItem is a scheduling policy entry with its effective value.
type SettingItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// UpdateSettingRequest changes a single policy value.
type UpdateSettingRequest struct {
	Value string `json:"value" validate:"required"`
}

// BulkUpdateSettingsRequest applies several policy changes at once.
type BulkUpdateSettingsRequest struct {
	Items []BulkSettingItem `json:"items" validate:"required,min=1,max=32,dive"`
}

// BulkSettingItem is one key/value pair in a bulk update.
type BulkSettingItem struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}
