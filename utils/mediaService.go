package utils

import (
	"fmt"
	"log"
	"time"

	"lms/config"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v4"
)

// SignedMediaURL obtains a signed, time-limited URL for a stored media
// object. When a storage collaborator is configured it is asked to sign;
// otherwise the URL is minted locally with an expiring token so players
// keep working in development setups.
func SignedMediaURL(objectKey string) (string, error) {
	if objectKey == "" {
		return "", fmt.Errorf("empty media object key")
	}

	if config.AppConfig.MediaApiURL != "" {
		return requestSignedURL(objectKey)
	}

	return localSignedURL(objectKey)
}

func requestSignedURL(objectKey string) (string, error) {
	client := resty.New()

	var result struct {
		URL string `json:"url"`
	}
	resp, err := client.R().
		SetHeader("Authorization", "Bearer "+config.AppConfig.MediaApiKey).
		SetBody(map[string]interface{}{
			"object_key": objectKey,
			"expires_in": 3600,
		}).
		SetResult(&result).
		Post(config.AppConfig.MediaApiURL + "/sign")
	if err != nil {
		log.Printf("Failed to request signed media URL: %v", err)
		return "", err
	}
	if resp.StatusCode() != 200 || result.URL == "" {
		log.Printf("Media signing failed: %s", resp.String())
		return "", fmt.Errorf("media signing failed, code: %d", resp.StatusCode())
	}

	return result.URL, nil
}

func localSignedURL(objectKey string) (string, error) {
	claims := jwt.MapClaims{
		"key": objectKey,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(1 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.AppConfig.JWTKey))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/media/%s?token=%s", objectKey, signed), nil
}
