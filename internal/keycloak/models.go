// Пакет keycloak — HTTP-клиент к Keycloak Admin REST API.
// models.go — модели данных Keycloak.
package keycloak

// TokenResponse — ответ на запрос токена через Client Credentials flow.
type TokenResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// KeycloakUser — пользователь в Keycloak.
// ID пуст до создания (назначается Keycloak'ом). Отсутствующие поля
// опускаются при сериализации.
type KeycloakUser struct { //nolint:revive // stuttering допустим — внешний API Keycloak
	ID          string               `json:"id,omitempty"`
	Username    string               `json:"username,omitempty"`
	Enabled     bool                 `json:"enabled"`
	FirstName   string               `json:"firstName,omitempty"`
	LastName    string               `json:"lastName,omitempty"`
	Email       string               `json:"email,omitempty"`
	Credentials []KeycloakCredential `json:"credentials,omitempty"`
	// Attributes всегда содержит fullName, companyId и userId
	// одноэлементными списками; userId — ключ корреляции при поиске.
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// KeycloakCredential — учётные данные пользователя.
// CredentialData и SecretData — JSON-строки (так хранит Keycloak).
type KeycloakCredential struct { //nolint:revive // stuttering допустим — внешний API Keycloak
	Type           string `json:"type"`
	CredentialData string `json:"credentialData"`
	SecretData     string `json:"secretData"`
	Temporary      bool   `json:"temporary"`
}

// credentialData — содержимое CredentialData до сериализации.
type credentialData struct {
	Algorithm            string         `json:"algorithm"`
	HashIterations       int            `json:"hashIterations"`
	AdditionalParameters map[string]any `json:"additionalParameters"`
}

// secretData — содержимое SecretData до сериализации.
type secretData struct {
	Value string `json:"value"`
}

// RealmRepresentation — краткая информация о realm.
type RealmRepresentation struct {
	Realm   string `json:"realm"`
	Enabled bool   `json:"enabled"`
}
