package keycloak

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/verifix/usersync/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func int64Ptr(n int64) *int64 { return &n }
func strPtr(s string) *string { return &s }

// setupMockKeycloak создаёт mock HTTP-сервер Keycloak.
// tokenHandler обрабатывает запросы на получение токена.
// adminHandler обрабатывает запросы к Admin REST API.
func setupMockKeycloak(t *testing.T, tokenHandler, adminHandler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()

	mux := http.NewServeMux()

	// Token endpoint
	mux.HandleFunc("/realms/verifix/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		if tokenHandler != nil {
			tokenHandler(w, r)
			return
		}
		// Дефолтный ответ: валидный токен на 300 секунд
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: "test-access-token",
			TokenType:   "Bearer",
			ExpiresIn:   300,
		})
	})

	// Admin REST API
	mux.HandleFunc("/admin/realms/verifix/", func(w http.ResponseWriter, r *http.Request) {
		if adminHandler != nil {
			adminHandler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := New(
		server.URL,
		"verifix",
		"usersync",
		"test-secret",
		server.Client(),
		testLogger(),
	)

	return server, client
}

// TestClient_TokenCaching проверяет кэширование токена.
func TestClient_TokenCaching(t *testing.T) {
	tokenRequests := 0

	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			tokenRequests++
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(TokenResponse{
				AccessToken: "cached-token",
				TokenType:   "Bearer",
				ExpiresIn:   300,
			})
		},
		nil,
	)

	ctx := context.Background()

	// Первый запрос — получение токена
	token1, err := client.getToken(ctx)
	if err != nil {
		t.Fatalf("Ошибка получения токена: %v", err)
	}
	if token1 != "cached-token" {
		t.Errorf("ожидался cached-token, получен %s", token1)
	}

	// Второй запрос — из кэша (не должен вызывать HTTP)
	token2, err := client.getToken(ctx)
	if err != nil {
		t.Fatalf("Ошибка получения токена: %v", err)
	}
	if token2 != "cached-token" {
		t.Errorf("ожидался cached-token, получен %s", token2)
	}

	if tokenRequests != 1 {
		t.Errorf("ожидался 1 запрос токена, было %d", tokenRequests)
	}
}

// TestClient_TokenRefresh проверяет обновление истёкшего токена.
func TestClient_TokenRefresh(t *testing.T) {
	tokenRequests := 0

	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			tokenRequests++
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(TokenResponse{
				AccessToken: "refreshed-token",
				TokenType:   "Bearer",
				ExpiresIn:   300,
			})
		},
		nil,
	)

	// Устанавливаем «просроченный» токен в кэш
	client.accessToken = "old-token"
	client.tokenExpiry = time.Now().Add(-time.Second)

	ctx := context.Background()
	token, err := client.getToken(ctx)
	if err != nil {
		t.Fatalf("Ошибка обновления токена: %v", err)
	}
	if token != "refreshed-token" {
		t.Errorf("ожидался refreshed-token, получен %s", token)
	}
	if tokenRequests != 1 {
		t.Errorf("ожидался 1 запрос токена, было %d", tokenRequests)
	}
}

// TestClient_TokenRefreshBefore30s проверяет обновление за 30 секунд до истечения.
func TestClient_TokenRefreshBefore30s(t *testing.T) {
	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(TokenResponse{
				AccessToken: "new-token",
				TokenType:   "Bearer",
				ExpiresIn:   300,
			})
		},
		nil,
	)

	// Токен истекает через 20 секунд — должен обновиться (< 30s)
	client.accessToken = "expiring-token"
	client.tokenExpiry = time.Now().Add(20 * time.Second)

	ctx := context.Background()
	token, err := client.getToken(ctx)
	if err != nil {
		t.Fatalf("Ошибка обновления токена: %v", err)
	}
	if token != "new-token" {
		t.Errorf("ожидался new-token, получен %s", token)
	}
}

// TestClient_ConcurrentRefresh проверяет, что конкурентное обнаружение
// истечения токена даёт один сетевой запрос.
func TestClient_ConcurrentRefresh(t *testing.T) {
	var mu sync.Mutex
	tokenRequests := 0

	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			tokenRequests++
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(TokenResponse{
				AccessToken: "single-flight-token",
				TokenType:   "Bearer",
				ExpiresIn:   300,
			})
		},
		nil,
	)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.getToken(context.Background()); err != nil {
				t.Errorf("Ошибка получения токена: %v", err)
			}
		}()
	}
	wg.Wait()

	if tokenRequests != 1 {
		t.Errorf("ожидался 1 запрос токена при конкурентном доступе, было %d", tokenRequests)
	}
}

// TestClient_ClientCredentialsFlow проверяет формат запроса Client Credentials.
func TestClient_ClientCredentialsFlow(t *testing.T) {
	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			// Проверяем метод
			if r.Method != http.MethodPost {
				t.Errorf("ожидался POST, получен %s", r.Method)
			}
			// Проверяем Content-Type
			ct := r.Header.Get("Content-Type")
			if ct != "application/x-www-form-urlencoded" {
				t.Errorf("ожидался Content-Type application/x-www-form-urlencoded, получен %s", ct)
			}
			// Проверяем параметры
			if err := r.ParseForm(); err != nil {
				t.Fatalf("Ошибка парсинга формы: %v", err)
			}
			if r.Form.Get("grant_type") != "client_credentials" {
				t.Errorf("ожидался grant_type=client_credentials, получен %s", r.Form.Get("grant_type"))
			}
			if r.Form.Get("client_id") != "usersync" {
				t.Errorf("ожидался client_id=usersync, получен %s", r.Form.Get("client_id"))
			}
			if r.Form.Get("client_secret") != "test-secret" {
				t.Errorf("ожидался client_secret=test-secret, получен %s", r.Form.Get("client_secret"))
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(TokenResponse{
				AccessToken: "ok",
				TokenType:   "Bearer",
				ExpiresIn:   300,
			})
		},
		nil,
	)

	_, err := client.getToken(context.Background())
	if err != nil {
		t.Fatalf("Ошибка: %v", err)
	}
}

// TestClient_TokenError проверяет обработку ошибки получения токена.
func TestClient_TokenError(t *testing.T) {
	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_client"}`))
		},
		nil,
	)

	_, err := client.getToken(context.Background())
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("ожидалась ошибка со статусом 401, получена: %v", err)
	}
}

// TestClient_FindUserByExternalID проверяет поиск по атрибуту user_id.
func TestClient_FindUserByExternalID(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			// Проверяем Authorization header
			auth := r.Header.Get("Authorization")
			if auth != "Bearer test-access-token" {
				t.Errorf("ожидался Bearer test-access-token, получен %s", auth)
			}

			// Проверяем параметр поиска q=user_id:42
			if q := r.URL.Query().Get("q"); q != "user_id:42" {
				t.Errorf("ожидался q=user_id:42, получен %q", q)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]KeycloakUser{
				{ID: "kc-1", Username: "ivan.petrov", Enabled: true},
			})
		},
	)

	user, err := client.FindUserByExternalID(context.Background(), 42)
	if err != nil {
		t.Fatalf("Ошибка FindUserByExternalID: %v", err)
	}
	if user == nil {
		t.Fatal("ожидался пользователь, получен nil")
	}
	if user.ID != "kc-1" {
		t.Errorf("ожидался ID=kc-1, получен %s", user.ID)
	}
}

// TestClient_FindUserByExternalID_Empty: пустой список — не ошибка.
func TestClient_FindUserByExternalID_Empty(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[]`))
		},
	)

	user, err := client.FindUserByExternalID(context.Background(), 42)
	if err != nil {
		t.Fatalf("Ошибка FindUserByExternalID: %v", err)
	}
	if user != nil {
		t.Errorf("ожидался nil, получен %+v", user)
	}
}

// TestClient_FindUserByExternalID_NotFound: 404 — нормальный пустой результат.
func TestClient_FindUserByExternalID_NotFound(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	)

	user, err := client.FindUserByExternalID(context.Background(), 42)
	if err != nil {
		t.Fatalf("404 не должен быть ошибкой: %v", err)
	}
	if user != nil {
		t.Errorf("ожидался nil, получен %+v", user)
	}
}

// TestClient_FindUserByExternalID_ServerError: 500 — ошибка поиска.
func TestClient_FindUserByExternalID_ServerError(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	)

	_, err := client.FindUserByExternalID(context.Background(), 42)
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
}

// TestClient_CreateUser проверяет создание пользователя и возврат ID
// из Location header.
func TestClient_CreateUser(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/users") {
				// Проверяем тело запроса
				var user KeycloakUser
				if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
					t.Fatalf("Ошибка декодирования: %v", err)
				}
				if user.Username != "ivan.petrov" {
					t.Errorf("ожидался username=ivan.petrov, получен %s", user.Username)
				}
				if !user.Enabled {
					t.Error("ожидался enabled=true")
				}
				if got := user.Attributes["userId"]; len(got) != 1 || got[0] != "42" {
					t.Errorf("ожидался атрибут userId=[42], получен %v", got)
				}

				w.Header().Set("Location", "https://keycloak/admin/realms/verifix/users/kc-new-id")
				w.WriteHeader(http.StatusCreated)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		},
	)

	userData := &model.UserRecord{
		CompanyID: int64Ptr(1),
		UserID:    int64Ptr(42),
		Name:      strPtr("Ivan Petrov"),
		Login:     strPtr("ivan.petrov"),
	}

	id, err := client.CreateUser(context.Background(), userData)
	if err != nil {
		t.Fatalf("Ошибка CreateUser: %v", err)
	}
	if id != "kc-new-id" {
		t.Errorf("ожидался ID=kc-new-id, получен %s", id)
	}
}

// TestClient_CreateUser_NoLocation: ответ без Location header — ошибка.
func TestClient_CreateUser_NoLocation(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		},
	)

	userData := &model.UserRecord{UserID: int64Ptr(1), Login: strPtr("x")}
	if _, err := client.CreateUser(context.Background(), userData); err == nil {
		t.Fatal("ожидалась ошибка при отсутствии Location header")
	}
}

// TestClient_UpdateUser проверяет обновление пользователя.
func TestClient_UpdateUser(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/users/kc-1") {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		},
	)

	userData := &model.UserRecord{UserID: int64Ptr(42), Login: strPtr("ivan")}
	if err := client.UpdateUser(context.Background(), "kc-1", userData); err != nil {
		t.Fatalf("Ошибка UpdateUser: %v", err)
	}
}

// TestClient_DeleteUser проверяет удаление пользователя.
func TestClient_DeleteUser(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/users/kc-1") {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		},
	)

	if err := client.DeleteUser(context.Background(), "kc-1"); err != nil {
		t.Fatalf("Ошибка DeleteUser: %v", err)
	}
}

// TestClient_RealmInfo проверяет RealmInfo.
func TestClient_RealmInfo(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			// Realm info запрос идёт к /admin/realms/verifix (без доп. пути)
			path := strings.TrimPrefix(r.URL.Path, "/admin/realms/verifix")
			if path == "" || path == "/" {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(RealmRepresentation{
					Realm:   "verifix",
					Enabled: true,
				})
				return
			}
			w.WriteHeader(http.StatusNotFound)
		},
	)

	realm, err := client.RealmInfo(context.Background())
	if err != nil {
		t.Fatalf("Ошибка RealmInfo: %v", err)
	}
	if realm.Realm != "verifix" {
		t.Errorf("ожидался realm=verifix, получен %s", realm.Realm)
	}
}

// TestClient_CheckReady_Fail проверяет CheckReady при недоступности.
func TestClient_CheckReady_Fail(t *testing.T) {
	client := New(
		"http://localhost:1", // Несуществующий адрес
		"verifix",
		"usersync",
		"secret",
		&http.Client{Timeout: 100 * time.Millisecond},
		testLogger(),
	)

	status, _ := client.CheckReady()
	if status != "fail" {
		t.Errorf("ожидался status=fail, получен %s", status)
	}
}
