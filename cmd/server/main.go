/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the billing engine. The default command serves the
  HTTP API; the others run one-off maintenance against the same database.

COMMANDS:
  serve        Start the HTTP server (default)
  verify       Replay every ledger and report balance drift
  next-number  Print the invoice number the next invoice will get
  seed         Reset the database and load the demo company

PERSISTENT FLAGS:
  --port   HTTP server port (overrides PORT)
  --db     SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database

CONFIGURATION:
  Everything else comes from the environment or a .env file, see
  internal/config.

EXAMPLES:
  # Run with file database
  billing-engine --db=./data/billing.db

  # Check cached balances of one company
  billing-engine verify --company=<id>

  # Load demo data
  billing-engine seed --db=./data/demo.db

SEE ALSO:
  - serve.go: Server startup and shutdown
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

func main() {
	Execute()
}
