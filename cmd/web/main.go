package main

import "suchat_backend/internal/app"

func main() {
	app.Run()
}
