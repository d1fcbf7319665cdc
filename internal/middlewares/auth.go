package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/booksync/quickbooks-connector/internal/platform/logger"

	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
)

const (
	authErrorMessage   = "Authentication failed"
	authErrorLogHeader = "Authentication error: "
	PSKClientIdHeader  = "x-qbc-client-id"
	PSKAccountHeader   = "x-qbc-account"
	PSKHeader          = "x-qbc-psk"
)

// AuthMiddleware allows the passage of parameters into the Authenticate middleware
type AuthMiddleware struct {
	Secrets       map[string]interface{}
	JwtSigningKey string
}

// Authenticate determines which authentication method should be used.  A
// Bearer token is verified against the configured signing key; otherwise
// the pre-shared key headers are required.
func (amw *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			principal, err := amw.validateBearerToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"error": err}).Debug("Authentication failure")
				http.Error(w, authErrorMessage, 401)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		sr, err := newServiceCredentials(
			r.Header.Get(PSKClientIdHeader),
			r.Header.Get(PSKAccountHeader),
			r.Header.Get(PSKHeader),
		)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Debug("Authentication failure")
			http.Error(w, authErrorMessage, 401)
			return
		}

		logger.Log.Debugf("Received service to service request from %v using account:%v", sr.clientID, sr.account)

		validator := serviceCredentialsValidator{knownServiceCredentials: amw.Secrets}
		if err := validator.validate(sr); err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Debug("Authentication failure")
			http.Error(w, authErrorMessage, 401)
			return
		}

		principal := serviceToServicePrincipal{account: sr.account, clientID: sr.clientID}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (amw *AuthMiddleware) validateBearerToken(tokenString string) (serviceToServicePrincipal, error) {

	if amw.JwtSigningKey == "" {
		return serviceToServicePrincipal{}, errors.New(authErrorLogHeader + "Bearer auth is not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New(authErrorLogHeader + "Unexpected signing method")
		}
		return []byte(amw.JwtSigningKey), nil
	})
	if err != nil {
		return serviceToServicePrincipal{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return serviceToServicePrincipal{}, errors.New(authErrorLogHeader + "Invalid bearer token")
	}

	account, _ := claims["account"].(string)
	clientID, _ := claims["sub"].(string)

	return serviceToServicePrincipal{account: account, clientID: clientID}, nil
}
