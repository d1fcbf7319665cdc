package logger

import (
	"github.com/booksync/quickbooks-connector/internal/domain"

	"github.com/sirupsen/logrus"
)

func LogError(msg string, err error) {
	Log.WithFields(logrus.Fields{"error": err}).Error(msg)
}

func LogFatalError(msg string, err error) {
	Log.WithFields(logrus.Fields{"error": err}).Fatal(msg)
}

func LogWithError(log *logrus.Entry, msg string, err error) {
	log.WithFields(logrus.Fields{"error": err}).Error(msg)
}

func LogErrorWithRealmID(msg string, err error, realmID domain.RealmID) {
	Log.WithFields(logrus.Fields{"error": err, "realm_id": realmID}).Error(msg)
}
