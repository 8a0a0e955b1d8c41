// Command ledger serves the ledger API and runs its verification worker.
package main

func main() {
	execute()
}
