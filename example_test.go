package columnar_test

import (
	"fmt"

	"github.com/silostack/columnar"
)

var (
	examplePosition = columnar.NewSchema("ExamplePosition").
			Field("x", columnar.F64, 0).
			Field("y", columnar.F64, 0).
			Build()
	exampleVelocity = columnar.NewSchema("ExampleVelocity").
			Field("x", columnar.F64, 0).
			Field("y", columnar.F64, 0).
			Build()
	exampleName = columnar.NewSchema("ExampleName").
			Faux("value", columnar.FauxString, "").
			Build()
)

// Example_basic shows entity creation, component writes via the proxy
// accessor, and a query over two required components.
func Example_basic() {
	world := columnar.NewWorld(16)

	for i := 0; i < 3; i++ {
		e, _ := world.AddEntity()
		world.AddComponent(examplePosition, e, nil)
	}

	player, _ := world.AddEntity()
	world.AddComponent(examplePosition, player, map[string]any{"x": 10.0, "y": 20.0})
	world.AddComponent(exampleVelocity, player, map[string]any{"x": 1.0, "y": 2.0})
	world.AddComponent(exampleName, player, map[string]any{"value": "Player"})

	moving := columnar.DefineQuery("ExamplePosition", "ExampleVelocity")
	fmt.Printf("Found %d entities with position and velocity\n", len(moving.Entities(world)))

	for _, e := range moving.Entities(world) {
		posProxy := columnar.GetProxy(world, examplePosition, e)
		velProxy := columnar.GetProxy(world, exampleVelocity, e)
		nameProxy := columnar.GetProxy(world, exampleName, e)

		pos, _ := posProxy.Get("x")
		posY, _ := posProxy.Get("y")
		vel, _ := velProxy.Get("x")
		velY, _ := velProxy.Get("y")
		posProxy.Set("x", pos.Number+vel.Number)
		posProxy.Set("y", posY.Number+velY.Number)

		name, _ := nameProxy.Get("value")
		newX, _ := posProxy.Get("x")
		newY, _ := posProxy.Get("y")
		fmt.Printf("Updated %s to position (%.1f, %.1f)\n", name.Any, newX.Number, newY.Number)
	}

	// Output:
	// Found 1 entities with position and velocity
	// Updated Player to position (11.0, 22.0)
}

// Example_queries shows AND-style query composition: each DefineQuery
// call names the exact component set required.
func Example_queries() {
	world := columnar.NewWorld(16)

	for i := 0; i < 3; i++ {
		e, _ := world.AddEntity()
		world.AddComponent(examplePosition, e, nil)
	}
	for i := 0; i < 3; i++ {
		e, _ := world.AddEntity()
		world.AddComponent(examplePosition, e, nil)
		world.AddComponent(exampleVelocity, e, nil)
	}

	posAndVel := columnar.DefineQuery("ExamplePosition", "ExampleVelocity")
	fmt.Printf("Query matched %d entities\n", len(posAndVel.Entities(world)))

	// Output:
	// Query matched 3 entities
}
