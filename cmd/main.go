package main

import "github.com/avdeyev/tasky/internal/app"

func main() {
	app.InitDefaultLogger()
	app.MustReadEnv()
	app.MustInitApplicationLogger()

	app.MustConnectPostgres()
	app.MustBootstrapSchema()
	defer app.DisconnectPostgres()

	app.MustListenAndServeHTTP()
}
