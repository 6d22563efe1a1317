package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           llamad API
// @version         1.0
// @description     HTTP API for local GPU inventory and llama-server supervision.
//
// @contact.name   llamad maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
