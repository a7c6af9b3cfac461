package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys double as the English text.
const (
	MsgTitle           = "Network access"
	MsgSignInPrompt    = "Sign in to continue"
	MsgUsername        = "Username"
	MsgPassword        = "Password"
	MsgSignIn          = "Sign in"
	MsgSignOut         = "Sign out"
	MsgConnected       = "You are connected"
	MsgSignedInAs      = "Signed in as %s"
	MsgTimeRemaining   = "Time remaining: %s"
	MsgInvalidLogin    = "Invalid username or password"
	MsgMissingFields   = "Enter your username and password"
	MsgTooManyAttempts = "Too many attempts. Try again in %d seconds."
	MsgDeviceUnknown   = "This device could not be identified. Reconnect to the network and try again."
	MsgSignedOut       = "You have been signed out"
)

var spanish = map[string]string{
	MsgTitle:           "Acceso a la red",
	MsgSignInPrompt:    "Inicia sesión para continuar",
	MsgUsername:        "Usuario",
	MsgPassword:        "Contraseña",
	MsgSignIn:          "Entrar",
	MsgSignOut:         "Cerrar sesión",
	MsgConnected:       "Estás conectado",
	MsgSignedInAs:      "Sesión iniciada como %s",
	MsgTimeRemaining:   "Tiempo restante: %s",
	MsgInvalidLogin:    "Usuario o contraseña incorrectos",
	MsgMissingFields:   "Introduce tu usuario y contraseña",
	MsgTooManyAttempts: "Demasiados intentos. Vuelve a intentarlo en %d segundos.",
	MsgDeviceUnknown:   "No se pudo identificar este dispositivo. Vuelve a conectarte a la red e inténtalo de nuevo.",
	MsgSignedOut:       "Has cerrado la sesión",
}

func init() {
	for key, text := range spanish {
		_ = message.SetString(language.Spanish, key, text)
	}
}
