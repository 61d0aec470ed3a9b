// gentoken prints a Firebase ID token, to call the functions locally:
//
//	curl -H "Authorization: Bearer $(go run ./cmd/gentoken -uid u1 -apikey ...)" localhost:8082/Chats
//
// With -email and -password it signs in as an existing user instead of minting a
// custom token from a service account.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

const identityToolkitURL = "https://identitytoolkit.googleapis.com/v1/accounts:%s?key=%s"

type SignInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

func main() {
	ctx := context.Background()
	uid := flag.String("uid", "", "User UID for token generation")
	apiKey := flag.String("apikey", "", "Firebase API key for Identity Toolkit REST API")
	keyFile := flag.String("key", "./service_account_key.json", "Service account key file")
	email := flag.String("email", "", "Sign in with this email instead of a custom token")
	password := flag.String("password", "", "Password for -email")
	flag.Parse()

	if *apiKey == "" {
		log.Fatalf("Please provide a Firebase API key using the -apikey flag")
	}

	var (
		resp SignInResponse
		err  error
	)
	switch {
	case *email != "":
		resp, err = signIn(*apiKey, "signInWithPassword", map[string]any{
			"email":             *email,
			"password":          *password,
			"returnSecureToken": true,
		})
	case *uid != "":
		var customToken string
		customToken, err = mintCustomToken(ctx, *keyFile, *uid)
		if err == nil {
			resp, err = signIn(*apiKey, "signInWithCustomToken", map[string]any{
				"token":             customToken,
				"returnSecureToken": true,
			})
		}
	default:
		log.Fatalf("Please provide a user UID using the -uid flag or credentials using -email and -password")
	}
	if err != nil {
		log.Fatalf("error while generating token: %v", err)
	}
	fmt.Println(resp.IDToken)
}

func mintCustomToken(ctx context.Context, keyFile, uid string) (string, error) {
	absPath, err := filepath.Abs(keyFile)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(absPath))
	if err != nil {
		return "", fmt.Errorf("error initializing app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting Auth client: %w", err)
	}
	return client.CustomToken(ctx, uid)
}

// signIn calls an Identity Toolkit sign-in method and returns the issued tokens.
func signIn(apiKey, method string, payload map[string]any) (SignInResponse, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return SignInResponse{}, err
	}
	resp, err := http.Post(fmt.Sprintf(identityToolkitURL, method, apiKey), "application/json", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return SignInResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SignInResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return SignInResponse{}, fmt.Errorf("non-OK HTTP status: %d, response: %s", resp.StatusCode, string(body))
	}

	var signInResp SignInResponse
	if err := json.Unmarshal(body, &signInResp); err != nil {
		return SignInResponse{}, err
	}
	return signInResp, nil
}
