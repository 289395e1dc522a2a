package rod

const (
	basicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<h1>Hello World</h1>
</body>
</html>`

	formHTML = `<!DOCTYPE html>
<html>
<head><title>Form</title></head>
<body>
	<form id="testForm">
		<label for="username">Username</label>
		<input id="username" type="text" name="username" value="old" />
		<input id="search" type="text" aria-label="Search" />
		<button id="submit" type="button">Submit</button>
	</form>
</body>
</html>`

	interactiveHTML = `<!DOCTYPE html>
<html>
<head><title>Interactive</title></head>
<body>
	<button id="btn">Click Me</button>
	<button class="item">First</button>
	<button class="item">Second</button>
	<div id="result"></div>
	<script>
		document.getElementById('btn').addEventListener('click', function() {
			document.getElementById('result').textContent = 'Clicked!';
		});
		setTimeout(function() {
			var late = document.createElement('p');
			late.id = 'late';
			late.textContent = 'Loaded';
			document.body.appendChild(late);
		}, 300);
	</script>
</body>
</html>`

	scrollableHTML = `<!DOCTYPE html>
<html>
<body style="height: 5000px;">
	<h1 id="top">Top of Page</h1>
	<div style="margin-top: 2000px;" id="middle">Middle</div>
</body>
</html>`
)
