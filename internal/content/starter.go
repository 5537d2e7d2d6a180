package content

// StarterFiles is the record set every new project is seeded with.
func StarterFiles() []FileRecord {
	return []FileRecord{
		{Path: "/src", IsFolder: true},
		{Path: "/public", IsFolder: true},
		{Path: "/src/App.tsx", Content: starterApp},
		{Path: "/src/index.tsx", Content: starterIndex},
		{Path: "/src/App.css", Content: starterCSS},
	}
}

const starterApp = `import { useState } from 'react';
import './App.css';

function App() {
  const [count, setCount] = useState(0);

  return (
    <div className="App">
      <header className="App-header">
        <h1>Welcome to CipherStudio</h1>
        <p>Start editing to see your changes live!</p>
        <div className="card">
          <button onClick={() => setCount((count) => count + 1)}>
            count is {count}
          </button>
        </div>
      </header>
    </div>
  );
}

export default App;`

const starterIndex = `import React from 'react';
import ReactDOM from 'react-dom/client';
import App from './App';

ReactDOM.createRoot(document.getElementById('root')!).render(
  <React.StrictMode>
    <App />
  </React.StrictMode>
);`

const starterCSS = `.App {
  text-align: center;
  min-height: 100vh;
  display: flex;
  flex-direction: column;
  align-items: center;
  justify-content: center;
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
}

.App-header {
  color: white;
}

.App-header h1 {
  font-size: 3rem;
  margin-bottom: 1rem;
}

.card {
  margin-top: 2rem;
}

button {
  padding: 12px 24px;
  font-size: 1rem;
  border-radius: 8px;
  border: none;
  background-color: white;
  color: #667eea;
  font-weight: 600;
  cursor: pointer;
  transition: transform 0.2s;
}

button:hover {
  transform: scale(1.05);
}`
