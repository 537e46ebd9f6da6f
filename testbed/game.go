package testbed

import (
	"github.com/kevinpruvost/VenomEngine-sub001/engine"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/cache"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/math"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
)

const (
	shaderDir  = "assets/shaders/pbr"
	skyboxFile = "assets/textures/skybox.png"
	albedoFile = "assets/textures/cube_albedo.png"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	app *renderer.GraphicsApplication

	width  uint32
	height uint32

	cube   *renderer.Model
	shader *cache.Holder[*renderer.Shader]
	skybox *renderer.Skybox

	elapsed float64
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

func (g *TestGame) Initialize(app *renderer.GraphicsApplication) error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.state()
	state.app = app

	cube, err := app.CreateMesh(renderer.MeshDesc{
		Name:            "test_cube",
		Vertices:        cubeVertices(5.0),
		Indices:         cubeIndices(),
		GenerateNormals: true,
	})
	if err != nil {
		return err
	}
	defer cube.Release()

	// Assets are optional, the testbed still clears and presents without.
	desc := renderer.ModelDesc{Name: "test_cube", Meshes: []*renderer.Mesh{cube}}
	if albedo, err := app.LoadTexture(albedoFile); err != nil {
		core.LogWarn("no cube texture at `%s`: %s", albedoFile, err)
	} else {
		defer albedo.Release()
		desc.Textures = append(desc.Textures, albedo)
	}
	model, err := app.CreateModel(desc)
	if err != nil {
		return err
	}
	state.cube = model

	if shader, err := app.LoadShader(pass.PBRModel, shaderDir); err != nil {
		core.LogWarn("no PBR shader at `%s`: %s", shaderDir, err)
	} else {
		state.shader = shader
	}
	if skybox, err := app.LoadSkybox(skyboxFile); err != nil {
		core.LogWarn("no skybox at `%s`: %s", skyboxFile, err)
	} else {
		state.skybox = skybox
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	g.state().elapsed += deltaTime
	return nil
}

func (g *TestGame) Render(scene *renderer.Scene, deltaTime float64) error {
	state := g.state()
	scene.Skybox = state.skybox
	scene.CastShadows = true
	scene.Draws = scene.Draws[:0]
	if state.shader != nil {
		scene.AddModel(state.cube, state.shader.Get())
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.state()
	if state.skybox != nil {
		state.skybox.Release()
	}
	if state.shader != nil {
		state.shader.Release()
	}
	if state.cube != nil {
		state.cube.Release()
	}
	core.LogInfo("testbed ran for %.1fs", state.elapsed)
	return nil
}

func cubeVertices(size float32) []math.Vertex3D {
	h := size / 2
	corners := []math.Vec3{
		{X: -h, Y: -h, Z: h}, {X: h, Y: -h, Z: h}, {X: h, Y: h, Z: h}, {X: -h, Y: h, Z: h},
		{X: -h, Y: -h, Z: -h}, {X: h, Y: -h, Z: -h}, {X: h, Y: h, Z: -h}, {X: -h, Y: h, Z: -h},
	}
	vertices := make([]math.Vertex3D, len(corners))
	for i, c := range corners {
		vertices[i] = math.Vertex3D{
			Position: c,
			Colour:   math.Vec4{X: 1, Y: 1, Z: 1, W: 1},
		}
	}
	return vertices
}

func cubeIndices() []uint32 {
	return []uint32{
		0, 1, 2, 2, 3, 0, // front
		1, 5, 6, 6, 2, 1, // right
		5, 4, 7, 7, 6, 5, // back
		4, 0, 3, 3, 7, 4, // left
		3, 2, 6, 6, 7, 3, // top
		4, 5, 1, 1, 0, 4, // bottom
	}
}
